package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/infrastructure/persistence/models"
)

// GormLoanRepository implements LoanRepository using GORM
type GormLoanRepository struct {
	db *gorm.DB
}

// NewGormLoanRepository creates a new GormLoanRepository
func NewGormLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

// FindByID finds a loan by its ID
func (r *GormLoanRepository) FindByID(ctx context.Context, id string) (*circulation.Loan, error) {
	var model models.LoanModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindActiveByBorrower lists open loans, most recent first
func (r *GormLoanRepository) FindActiveByBorrower(ctx context.Context, borrowerID string) ([]circulation.Loan, error) {
	var loanModels []models.LoanModel
	if err := r.db.WithContext(ctx).
		Where("borrower_id = ? AND returned_at IS NULL", borrowerID).
		Order("borrowed_at DESC").
		Find(&loanModels).Error; err != nil {
		return nil, translateError(err)
	}
	return toLoans(loanModels), nil
}

// FindByBorrower lists a page of the borrower's loans and the total count
func (r *GormLoanRepository) FindByBorrower(ctx context.Context, borrowerID string, page, pageSize int) ([]circulation.Loan, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.LoanModel{}).
		Where("borrower_id = ?", borrowerID).
		Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var loanModels []models.LoanModel
	if err := r.db.WithContext(ctx).
		Where("borrower_id = ?", borrowerID).
		Order("borrowed_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&loanModels).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return toLoans(loanModels), total, nil
}

// CountActiveByBorrower counts loans without a return date
func (r *GormLoanRepository) CountActiveByBorrower(ctx context.Context, borrowerID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LoanModel{}).
		Where("borrower_id = ? AND returned_at IS NULL", borrowerID).
		Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return int(count), nil
}

// CreateBatch inserts loans in one statement
func (r *GormLoanRepository) CreateBatch(ctx context.Context, loans []*circulation.Loan) error {
	if len(loans) == 0 {
		return nil
	}
	loanModels := make([]*models.LoanModel, len(loans))
	for i, l := range loans {
		loanModels[i] = models.LoanModelFromDomain(l)
	}
	return translateError(r.db.WithContext(ctx).Create(&loanModels).Error)
}

// Save creates or updates a loan
func (r *GormLoanRepository) Save(ctx context.Context, loan *circulation.Loan) error {
	return translateError(r.db.WithContext(ctx).Save(models.LoanModelFromDomain(loan)).Error)
}

func toLoans(loanModels []models.LoanModel) []circulation.Loan {
	loans := make([]circulation.Loan, len(loanModels))
	for i, m := range loanModels {
		loans[i] = *m.ToDomain()
	}
	return loans
}

var _ circulation.LoanRepository = (*GormLoanRepository)(nil)
