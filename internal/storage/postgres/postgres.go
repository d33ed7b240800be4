// Package postgres is a gorm-backed storage.Store. Each top-level path
// component is one row; deeper components address into the row's JSON value.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"santabot/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document is one top-level entry of the tree.
type Document struct {
	Path      string `gorm:"primaryKey"`
	Value     string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

// Store implements storage.Store on PostgreSQL.
type Store struct {
	DB *gorm.DB
}

// Open connects to dsn and migrates the documents table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm connection.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	slog.Info("postgres document store ready")
	return &Store{DB: db}, nil
}

// wrap puts a row value under "v" so the shared tree helpers can address it.
func wrap(value string) []byte {
	return []byte(`{"v":` + value + `}`)
}

func selector(rest string) string {
	if rest == "" {
		return "v"
	}
	return "v." + rest
}

func (s *Store) load(tx *gorm.DB, root string) ([]byte, bool, error) {
	var doc Document
	err := tx.Where("path = ?", root).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []byte("{}"), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return wrap(doc.Value), true, nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	root, rest := storage.SplitRoot(path)
	doc, found, err := s.load(s.DB.WithContext(ctx), root)
	if err != nil || !found {
		return false, err
	}
	return storage.Lookup(doc, selector(rest)).Exists(), nil
}

func (s *Store) Read(ctx context.Context, path string, dst any) error {
	root, rest := storage.SplitRoot(path)
	doc, _, err := s.load(s.DB.WithContext(ctx), root)
	if err != nil {
		return err
	}
	return storage.Decode(storage.Lookup(doc, selector(rest)), dst)
}

// Write runs a read-modify-write of the row under a row lock.
func (s *Store) Write(ctx context.Context, path string, value any, appendToArray bool) error {
	root, rest := storage.SplitRoot(path)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, _, err := s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), root)
		if err != nil {
			return err
		}
		doc, err = storage.Put(doc, selector(rest), value, appendToArray)
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return s.save(tx, root, doc)
	})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	root, rest := storage.SplitRoot(path)
	if rest == "" {
		return s.DB.WithContext(ctx).Where("path = ?", root).Delete(&Document{}).Error
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, found, err := s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), root)
		if err != nil || !found {
			return err
		}
		doc, err = storage.Remove(doc, selector(rest))
		if err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
		return s.save(tx, root, doc)
	})
}

func (s *Store) Count(ctx context.Context, path string) (int, error) {
	root, rest := storage.SplitRoot(path)
	doc, _, err := s.load(s.DB.WithContext(ctx), root)
	if err != nil {
		return 0, err
	}
	return storage.CountIn(doc, selector(rest))
}

func (s *Store) Find(ctx context.Context, path string, match storage.Matcher) (json.RawMessage, error) {
	root, rest := storage.SplitRoot(path)
	doc, _, err := s.load(s.DB.WithContext(ctx), root)
	if err != nil {
		return nil, err
	}
	return storage.FindIn(doc, selector(rest), match)
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) save(tx *gorm.DB, root string, doc []byte) error {
	value := storage.Lookup(doc, "v")
	row := Document{Path: root, Value: value.Raw, UpdatedAt: time.Now()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
