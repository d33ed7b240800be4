// Package jsondb is a flat-file storage.Store: the whole tree is one JSON
// document, rewritten on every mutation.
package jsondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"santabot/backend/internal/storage"

	"github.com/tidwall/pretty"
)

// DB is a JSON file store. It is safe for concurrent use within one process.
type DB struct {
	path  string
	human bool

	mu  sync.RWMutex
	doc []byte
}

// Option configures a DB.
type Option func(*DB)

// WithHumanReadable pretty-prints the file on save.
func WithHumanReadable() Option {
	return func(db *DB) { db.human = true }
}

// Open loads path, creating the file and its directory when missing.
func Open(path string, opts ...Option) (*DB, error) {
	db := &DB{path: path}
	for _, o := range opts {
		o(db)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		db.doc = []byte("{}")
	case err != nil:
		return nil, fmt.Errorf("read db file: %w", err)
	default:
		if len(data) == 0 {
			data = []byte("{}")
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("db file %s is not valid JSON", path)
		}
		db.doc = data
	}

	if !storage.Lookup(db.doc, storage.Selector(storage.RegisteredChatsPath)).Exists() {
		if err := db.Write(context.Background(), storage.RegisteredChatsPath, []any{}, false); err != nil {
			return nil, err
		}
	}
	slog.Debug("jsondb opened", "path", path)
	return db, nil
}

func (db *DB) Exists(_ context.Context, path string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return storage.Lookup(db.doc, storage.Selector(path)).Exists(), nil
}

func (db *DB) Read(_ context.Context, path string, dst any) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return storage.Decode(storage.Lookup(db.doc, storage.Selector(path)), dst)
}

func (db *DB) Write(_ context.Context, path string, value any, appendToArray bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	doc, err := storage.Put(db.doc, storage.Selector(path), value, appendToArray)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return db.save(doc)
}

func (db *DB) Delete(_ context.Context, path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	doc, err := storage.Remove(db.doc, storage.Selector(path))
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return db.save(doc)
}

func (db *DB) Count(_ context.Context, path string) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return storage.CountIn(db.doc, storage.Selector(path))
}

func (db *DB) Find(_ context.Context, path string, match storage.Matcher) (json.RawMessage, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return storage.FindIn(db.doc, storage.Selector(path), match)
}

// Close is a no-op; every mutation is already on disk.
func (db *DB) Close() error { return nil }

// save writes doc via a temp file and swaps it in. Callers hold mu.
func (db *DB) save(doc []byte) error {
	out := doc
	if db.human {
		out = pretty.Pretty(doc)
	}

	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write db file: %w", err)
	}
	if err := os.Rename(tmp, db.path); err != nil {
		return fmt.Errorf("replace db file: %w", err)
	}
	db.doc = doc
	return nil
}
