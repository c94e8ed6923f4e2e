package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/infrastructure/persistence/models"
)

// GormBorrowerRepository implements BorrowerRepository using GORM
type GormBorrowerRepository struct {
	db *gorm.DB
}

// NewGormBorrowerRepository creates a new GormBorrowerRepository
func NewGormBorrowerRepository(db *gorm.DB) *GormBorrowerRepository {
	return &GormBorrowerRepository{db: db}
}

// FindByID finds a borrower by registration number
func (r *GormBorrowerRepository) FindByID(ctx context.Context, id string) (*circulation.Borrower, error) {
	var model models.BorrowerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a borrower
func (r *GormBorrowerRepository) Save(ctx context.Context, borrower *circulation.Borrower) error {
	return translateError(r.db.WithContext(ctx).Save(models.BorrowerModelFromDomain(borrower)).Error)
}

var _ circulation.BorrowerRepository = (*GormBorrowerRepository)(nil)
