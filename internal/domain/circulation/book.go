package circulation

import (
	"time"

	"github.com/biblioteca/backend/internal/domain/shared"
)

// BookStatus is the lending state of a physical copy
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "disponivel"
	BookStatusOnLoan      BookStatus = "emprestado"
	BookStatusMaintenance BookStatus = "manutencao"
)

// IsValid reports whether s is a known status
func (s BookStatus) IsValid() bool {
	switch s {
	case BookStatusAvailable, BookStatusOnLoan, BookStatusMaintenance:
		return true
	}
	return false
}

// Book is a physical copy identified by its RFID tag
type Book struct {
	shared.BaseEntity
	TagID    string
	Title    string
	Author   string
	Category string
	CoverURL string
	Status   BookStatus
}

// NewBook creates an available book
func NewBook(tagID, title, author string, now time.Time) *Book {
	return &Book{
		BaseEntity: shared.NewBaseEntity(now),
		TagID:      tagID,
		Title:      title,
		Author:     author,
		Status:     BookStatusAvailable,
	}
}

// IsLendable returns true if the copy can be checked out
func (b *Book) IsLendable() bool {
	return b.Status == BookStatusAvailable
}
