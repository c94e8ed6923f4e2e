package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/infrastructure/persistence/models"
)

// GormCartLineRepository implements CartLineRepository using GORM
type GormCartLineRepository struct {
	db *gorm.DB
}

// NewGormCartLineRepository creates a new GormCartLineRepository
func NewGormCartLineRepository(db *gorm.DB) *GormCartLineRepository {
	return &GormCartLineRepository{db: db}
}

// InsertIfAbsent inserts the line, doing nothing if idx_cart_lines_open already
// holds an open line for the same session and tag.
func (r *GormCartLineRepository) InsertIfAbsent(ctx context.Context, line *circulation.CartLine) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.CartLineModelFromDomain(line))
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindOpenBySession lists the open lines of a session, most recent read first
func (r *GormCartLineRepository) FindOpenBySession(ctx context.Context, sessionID string) ([]circulation.CartLine, error) {
	var lineModels []models.CartLineModel
	if err := r.openLines(ctx, sessionID).
		Order("read_at DESC").
		Find(&lineModels).Error; err != nil {
		return nil, translateError(err)
	}
	lines := make([]circulation.CartLine, len(lineModels))
	for i, m := range lineModels {
		lines[i] = *m.ToDomain()
	}
	return lines, nil
}

// CountOpenBySession counts the open lines of a session
func (r *GormCartLineRepository) CountOpenBySession(ctx context.Context, sessionID string) (int, error) {
	var count int64
	if err := r.openLines(ctx, sessionID).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return int(count), nil
}

// ExistsOpen reports whether the session has an open line for tagID
func (r *GormCartLineRepository) ExistsOpen(ctx context.Context, sessionID, tagID string) (bool, error) {
	var count int64
	if err := r.openLines(ctx, sessionID).
		Where("tag_id = ?", tagID).
		Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// DeleteOpen removes the open line for tagID; a missing line is not an error
func (r *GormCartLineRepository) DeleteOpen(ctx context.Context, sessionID, tagID string) error {
	return translateError(r.db.WithContext(ctx).
		Where("session_id = ? AND tag_id = ? AND finalized = ?", sessionID, tagID, false).
		Delete(&models.CartLineModel{}).Error)
}

// DeleteOpenBySession removes every open line of the session
func (r *GormCartLineRepository) DeleteOpenBySession(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND finalized = ?", sessionID, false).
		Delete(&models.CartLineModel{})
	return result.RowsAffected, translateError(result.Error)
}

// MarkFinalized flags the open lines of the session as finalized
func (r *GormCartLineRepository) MarkFinalized(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CartLineModel{}).
		Where("session_id = ? AND finalized = ?", sessionID, false).
		Updates(map[string]any{
			"finalized":  true,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, translateError(result.Error)
}

// DeleteOpenReadBefore removes open lines read before cutoff
func (r *GormCartLineRepository) DeleteOpenReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("finalized = ? AND read_at < ?", false, cutoff).
		Delete(&models.CartLineModel{})
	return result.RowsAffected, translateError(result.Error)
}

func (r *GormCartLineRepository) openLines(ctx context.Context, sessionID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.CartLineModel{}).
		Where("session_id = ? AND finalized = ?", sessionID, false)
}

var _ circulation.CartLineRepository = (*GormCartLineRepository)(nil)
