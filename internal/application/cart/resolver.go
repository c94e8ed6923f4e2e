package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// TagResolver maps a physical RFID tag to a lendable book
type TagResolver struct {
	books circulation.BookRepository
}

// NewTagResolver creates a new TagResolver
func NewTagResolver(books circulation.BookRepository) *TagResolver {
	return &TagResolver{books: books}
}

// Resolve returns the book registered under tagID.
// It fails with ErrInvalidTag, ErrTagNotFound or a BOOK_UNAVAILABLE error
// carrying the book's current status.
func (r *TagResolver) Resolve(ctx context.Context, tagID string) (*circulation.Book, error) {
	tagID = strings.TrimSpace(tagID)
	if tagID == "" {
		return nil, circulation.ErrInvalidTag
	}

	book, err := r.books.FindByTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, circulation.ErrTagNotFound
		}
		return nil, fmt.Errorf("find book by tag: %w", err)
	}

	if !book.IsLendable() {
		return nil, circulation.UnavailableError(book.Status)
	}
	return book, nil
}
