package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
	"github.com/biblioteca/backend/internal/infrastructure/persistence/models"
)

// GormBookRepository implements BookRepository using GORM
type GormBookRepository struct {
	db *gorm.DB
}

// NewGormBookRepository creates a new GormBookRepository
func NewGormBookRepository(db *gorm.DB) *GormBookRepository {
	return &GormBookRepository{db: db}
}

// FindByTag finds a book by its RFID tag
func (r *GormBookRepository) FindByTag(ctx context.Context, tagID string) (*circulation.Book, error) {
	var model models.BookModel
	if err := r.db.WithContext(ctx).First(&model, "tag_id = ?", tagID).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByTags loads the books for the given tags in no particular order
func (r *GormBookRepository) FindByTags(ctx context.Context, tagIDs []string) ([]circulation.Book, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	var bookModels []models.BookModel
	if err := r.db.WithContext(ctx).Where("tag_id IN ?", tagIDs).Find(&bookModels).Error; err != nil {
		return nil, translateError(err)
	}
	books := make([]circulation.Book, len(bookModels))
	for i, m := range bookModels {
		books[i] = *m.ToDomain()
	}
	return books, nil
}

// Save creates or updates a book
func (r *GormBookRepository) Save(ctx context.Context, book *circulation.Book) error {
	return translateError(r.db.WithContext(ctx).Save(models.BookModelFromDomain(book)).Error)
}

// UpdateStatus sets the status of every book with one of the tags
func (r *GormBookRepository) UpdateStatus(ctx context.Context, status circulation.BookStatus, tagIDs ...string) error {
	if !status.IsValid() {
		return shared.ErrInvalidInput.WithMessage("unknown book status " + string(status))
	}
	if len(tagIDs) == 0 {
		return nil
	}
	return translateError(r.db.WithContext(ctx).
		Model(&models.BookModel{}).
		Where("tag_id IN ?", tagIDs).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error)
}

var _ circulation.BookRepository = (*GormBookRepository)(nil)
