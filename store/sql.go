package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// OpenSQL opens a gorm connection. driver is "postgres" or "sqlite".
func OpenSQL(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.New(postgres.Config{DSN: dsn})
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// SQLStore is a gorm-backed implementation of Store.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the schema and returns a store over db.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&WorkPost{}, &Inquiry{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) List(ctx context.Context) ([]WorkSummary, error) {
	result := []WorkSummary{}
	err := s.db.WithContext(ctx).
		Model(&WorkPost{}).
		Select("id", "title", "category", "summary", "created_at", "updated_at").
		Order("created_at DESC").
		Order("id").
		Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	return result, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*WorkPost, error) {
	var w WorkPost
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *SQLStore) Upsert(ctx context.Context, w *WorkPost) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev *WorkPost
		if w.ID != "" {
			var existing WorkPost
			err := tx.Where("id = ?", w.ID).First(&existing).Error
			switch {
			case err == nil:
				prev = &existing
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		if err := prepareWork(w, prev, time.Now()); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(w).Error
	})
}

func (s *SQLStore) UpdateContent(ctx context.Context, id, content string) error {
	res := s.db.WithContext(ctx).Model(&WorkPost{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workNotFound(id)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&WorkPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workNotFound(id)
	}
	return nil
}

func (s *SQLStore) CreateInquiry(ctx context.Context, q *Inquiry) error {
	prepareInquiry(q, time.Now())
	err := s.db.WithContext(ctx).Create(q).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("inquiry %q: %w", q.ID, ErrAlreadyExists)
	}
	return err
}

func (s *SQLStore) ListInquiries(ctx context.Context) ([]Inquiry, error) {
	result := []Inquiry{}
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	return result, nil
}
