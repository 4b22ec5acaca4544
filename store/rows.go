package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/oklog/ulid/v2"
)

// WorkFromRow maps a loosely typed record, as read from Firestore or a
// hosted table in snake_case JSON, onto a WorkPost. Missing text fields
// become "", an unknown category becomes CategoryMetal and unparseable
// timestamps become the zero time.
func WorkFromRow(row map[string]any) WorkPost {
	return WorkPost{
		ID:        rowString(row, "id"),
		Title:     rowString(row, "title"),
		Category:  ParseCategory(rowString(row, "category")),
		Summary:   rowString(row, "summary"),
		Content:   rowString(row, "content"),
		Thumbnail: rowString(row, "thumbnail"),
		CreatedAt: rowTime(row, "created_at", "createdAt"),
		UpdatedAt: rowTime(row, "updated_at", "updatedAt"),
	}
}

// InquiryFromRow is the Inquiry counterpart of WorkFromRow. A missing
// status becomes InquiryPending.
func InquiryFromRow(row map[string]any) Inquiry {
	q := Inquiry{
		ID:        rowString(row, "id"),
		Name:      rowString(row, "name"),
		Phone:     rowString(row, "phone"),
		Email:     rowString(row, "email"),
		Service:   rowString(row, "service"),
		Location:  rowString(row, "location"),
		Message:   rowString(row, "message"),
		Status:    InquiryStatus(rowString(row, "status")),
		CreatedAt: rowTime(row, "created_at", "createdAt"),
	}
	if q.Status == "" {
		q.Status = InquiryPending
	}
	return q
}

func workToRow(w *WorkPost) map[string]any {
	return map[string]any{
		"title":      w.Title,
		"category":   string(w.Category),
		"summary":    w.Summary,
		"content":    w.Content,
		"thumbnail":  w.Thumbnail,
		"created_at": w.CreatedAt,
		"updated_at": w.UpdatedAt,
	}
}

func inquiryToRow(q *Inquiry) map[string]any {
	return map[string]any{
		"name":       q.Name,
		"phone":      q.Phone,
		"email":      q.Email,
		"service":    q.Service,
		"location":   q.Location,
		"message":    q.Message,
		"status":     string(q.Status),
		"created_at": q.CreatedAt,
	}
}

func rowString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

var rowTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02T15:04:05.999999", "2006-01-02"}

func rowTime(row map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		switch v := row[key].(type) {
		case time.Time:
			return v
		case *time.Time:
			if v != nil {
				return *v
			}
		case string:
			for _, layout := range rowTimeLayouts {
				if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
					return t
				}
			}
		}
	}
	return time.Time{}
}

func newWorkID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate work id: %w", err)
	}
	return id.String(), nil
}

// prepareWork fills the fields every backend sets on write. prev is the
// stored record, or nil.
func prepareWork(w *WorkPost, prev *WorkPost, now time.Time) error {
	if w.ID == "" {
		id, err := newWorkID()
		if err != nil {
			return err
		}
		w.ID = id
	}
	w.Category = ParseCategory(string(w.Category))
	if w.CreatedAt.IsZero() {
		if prev != nil {
			w.CreatedAt = prev.CreatedAt
		} else {
			w.CreatedAt = now
		}
	}
	w.UpdatedAt = now
	return nil
}

func prepareInquiry(q *Inquiry, now time.Time) {
	if q.ID == "" {
		q.ID = ulid.Make().String()
	}
	if q.Status == "" {
		q.Status = InquiryPending
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
}

func newestFirst[T any](items []T, created func(*T) time.Time, id func(*T) string) {
	slices.SortFunc(items, func(a, b T) int {
		if c := created(&b).Compare(created(&a)); c != 0 {
			return c
		}
		return strings.Compare(id(&a), id(&b))
	})
}

func sortSummaries(list []WorkSummary) {
	newestFirst(list,
		func(w *WorkSummary) time.Time { return w.CreatedAt },
		func(w *WorkSummary) string { return w.ID })
}

func sortInquiries(list []Inquiry) {
	newestFirst(list,
		func(q *Inquiry) time.Time { return q.CreatedAt },
		func(q *Inquiry) string { return q.ID })
}

func workNotFound(id string) error {
	return fmt.Errorf("work %q: %w", id, ErrNotFound)
}
