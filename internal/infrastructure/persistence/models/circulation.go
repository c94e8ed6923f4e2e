package models

import (
	"time"

	"github.com/biblioteca/backend/internal/domain/circulation"
)

// BookModel is the persistence model for books
type BookModel struct {
	BaseModel
	TagID    string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Title    string `gorm:"type:varchar(255);not null"`
	Author   string `gorm:"type:varchar(255)"`
	Category string `gorm:"type:varchar(100)"`
	CoverURL string `gorm:"type:text"`
	Status   string `gorm:"type:varchar(20);not null;default:'disponivel';index"`
}

// TableName returns the table name for GORM
func (BookModel) TableName() string {
	return "books"
}

// ToDomain converts the model to a domain Book
func (m *BookModel) ToDomain() *circulation.Book {
	return &circulation.Book{
		BaseEntity: m.BaseModel.ToDomain(),
		TagID:      m.TagID,
		Title:      m.Title,
		Author:     m.Author,
		Category:   m.Category,
		CoverURL:   m.CoverURL,
		Status:     circulation.BookStatus(m.Status),
	}
}

// BookModelFromDomain creates a model from a domain Book
func BookModelFromDomain(b *circulation.Book) *BookModel {
	m := &BookModel{
		TagID:    b.TagID,
		Title:    b.Title,
		Author:   b.Author,
		Category: b.Category,
		CoverURL: b.CoverURL,
		Status:   string(b.Status),
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// BorrowerModel is the persistence model for borrowers, keyed by registration number
type BorrowerModel struct {
	ID         string     `gorm:"type:varchar(32);primaryKey"`
	Name       string     `gorm:"type:varchar(255)"`
	Email      string     `gorm:"type:varchar(255)"`
	BlockDays  int        `gorm:"not null;default:0"`
	BlockUntil *time.Time `gorm:"default:null"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BorrowerModel) TableName() string {
	return "borrowers"
}

// ToDomain converts the model to a domain Borrower
func (m *BorrowerModel) ToDomain() *circulation.Borrower {
	return &circulation.Borrower{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		BlockDays:  m.BlockDays,
		BlockUntil: m.BlockUntil,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// BorrowerModelFromDomain creates a model from a domain Borrower
func BorrowerModelFromDomain(b *circulation.Borrower) *BorrowerModel {
	return &BorrowerModel{
		ID:         b.ID,
		Name:       b.Name,
		Email:      b.Email,
		BlockDays:  b.BlockDays,
		BlockUntil: b.BlockUntil,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// LoanModel is the persistence model for loans
type LoanModel struct {
	BaseModel
	BorrowerID   string     `gorm:"type:varchar(32);not null;index:idx_loans_borrower_open,priority:1"`
	TagID        string     `gorm:"type:varchar(64);not null;index"`
	BorrowedAt   time.Time  `gorm:"not null"`
	DueAt        time.Time  `gorm:"not null"`
	ReturnedAt   *time.Time `gorm:"index:idx_loans_borrower_open,priority:2"`
	RenewalCount int        `gorm:"not null;default:0"`
	Overdue      bool       `gorm:"not null;default:false"`
	OverdueDays  int        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (LoanModel) TableName() string {
	return "loans"
}

// ToDomain converts the model to a domain Loan
func (m *LoanModel) ToDomain() *circulation.Loan {
	return &circulation.Loan{
		BaseEntity:   m.BaseModel.ToDomain(),
		BorrowerID:   m.BorrowerID,
		TagID:        m.TagID,
		BorrowedAt:   m.BorrowedAt,
		DueAt:        m.DueAt,
		ReturnedAt:   m.ReturnedAt,
		RenewalCount: m.RenewalCount,
		Overdue:      m.Overdue,
		OverdueDays:  m.OverdueDays,
	}
}

// LoanModelFromDomain creates a model from a domain Loan
func LoanModelFromDomain(l *circulation.Loan) *LoanModel {
	m := &LoanModel{
		BorrowerID:   l.BorrowerID,
		TagID:        l.TagID,
		BorrowedAt:   l.BorrowedAt,
		DueAt:        l.DueAt,
		ReturnedAt:   l.ReturnedAt,
		RenewalCount: l.RenewalCount,
		Overdue:      l.Overdue,
		OverdueDays:  l.OverdueDays,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// CartLineModel is the persistence model for cart lines.
// The partial unique index allows one open line per session and tag.
type CartLineModel struct {
	BaseModel
	SessionID  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_cart_lines_open,where:finalized = false"`
	TagID      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_lines_open,where:finalized = false"`
	BorrowerID string    `gorm:"type:varchar(32);not null;index"`
	ReadAt     time.Time `gorm:"not null;index"`
	Finalized  bool      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartLineModel) TableName() string {
	return "cart_lines"
}

// ToDomain converts the model to a domain CartLine
func (m *CartLineModel) ToDomain() *circulation.CartLine {
	return &circulation.CartLine{
		BaseEntity: m.BaseModel.ToDomain(),
		SessionID:  m.SessionID,
		BorrowerID: m.BorrowerID,
		TagID:      m.TagID,
		ReadAt:     m.ReadAt,
		Finalized:  m.Finalized,
	}
}

// CartLineModelFromDomain creates a model from a domain CartLine
func CartLineModelFromDomain(l *circulation.CartLine) *CartLineModel {
	m := &CartLineModel{
		SessionID:  l.SessionID,
		BorrowerID: l.BorrowerID,
		TagID:      l.TagID,
		ReadAt:     l.ReadAt,
		Finalized:  l.Finalized,
	}
	m.FromDomainBaseEntity(l.BaseEntity)
	return m
}

// All returns every model for AutoMigrate
func All() []any {
	return []any{&BorrowerModel{}, &BookModel{}, &LoanModel{}, &CartLineModel{}}
}
