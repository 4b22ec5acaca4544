package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// WorkCategory classifies a work post.
type WorkCategory string

const (
	CategoryFence   WorkCategory = "fence"
	CategoryRailing WorkCategory = "railing"
	CategoryGate    WorkCategory = "gate"
	CategoryDeck    WorkCategory = "deck"
	CategoryMetal   WorkCategory = "metal"
)

// Categories lists every category in display order.
var Categories = []WorkCategory{CategoryFence, CategoryRailing, CategoryGate, CategoryDeck, CategoryMetal}

var categoryLabels = map[WorkCategory]string{
	CategoryFence:   "휀스",
	CategoryRailing: "난간",
	CategoryGate:    "대문",
	CategoryDeck:    "데크",
	CategoryMetal:   "금속구조물",
}

func (c WorkCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the Korean display name.
func (c WorkCategory) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryMetal]
}

// ParseCategory maps unknown values to CategoryMetal.
func ParseCategory(s string) WorkCategory {
	if c := WorkCategory(s); c.Valid() {
		return c
	}
	return CategoryMetal
}

// WorkPost is a published case study. Content holds a serialized rich-text
// document and Thumbnail a URL or data URL.
type WorkPost struct {
	ID        string       `json:"id" gorm:"primaryKey"`
	Title     string       `json:"title"`
	Category  WorkCategory `json:"category" gorm:"index"`
	Summary   string       `json:"summary"`
	Content   string       `json:"content" gorm:"type:text"`
	Thumbnail string       `json:"thumbnail" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (WorkPost) TableName() string { return "works" }

// WorkSummary is the list projection of a WorkPost.
type WorkSummary struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Category  WorkCategory `json:"category"`
	Summary   string       `json:"summary"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Brief returns the list projection of w.
func (w *WorkPost) Brief() WorkSummary {
	return WorkSummary{
		ID:        w.ID,
		Title:     w.Title,
		Category:  w.Category,
		Summary:   w.Summary,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type InquiryStatus string

const (
	InquiryPending InquiryStatus = "pending"
	InquiryDone    InquiryStatus = "done"
)

// Inquiry is a submission of the contact form.
type Inquiry struct {
	ID        string        `json:"id" gorm:"primaryKey"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone"`
	Email     string        `json:"email"`
	Service   string        `json:"service"`
	Location  string        `json:"location"`
	Message   string        `json:"message" gorm:"type:text"`
	Status    InquiryStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at" gorm:"index"`
}

func (Inquiry) TableName() string { return "inquiries" }

// WorkStore persists work posts.
// Implementations: MemoryStore, FirestoreStore, SQLStore, CachedStore.
type WorkStore interface {
	// List returns every work without content or thumbnail, newest first.
	List(ctx context.Context) ([]WorkSummary, error)
	Get(ctx context.Context, id string) (*WorkPost, error)
	// Upsert creates or replaces w. An empty ID is assigned; CreatedAt is
	// kept from the stored record when w leaves it zero.
	Upsert(ctx context.Context, w *WorkPost) error
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
}

// InquiryStore persists contact form submissions.
type InquiryStore interface {
	CreateInquiry(ctx context.Context, q *Inquiry) error
	// ListInquiries returns every inquiry, newest first.
	ListInquiries(ctx context.Context) ([]Inquiry, error)
}

// Store is a complete backend.
type Store interface {
	WorkStore
	InquiryStore
}
