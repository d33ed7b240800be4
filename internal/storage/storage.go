// Package storage defines the path-addressed document store the bot keeps its
// events in, and the typed event bookkeeping built on top of it.
//
// Paths are "/"-separated keys into a JSON-like tree, e.g.
// "/-1001234_registered_members". Implementations live in the jsondb
// (flat file) and postgres (gorm) subpackages.
package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Read and Find when nothing lives at the path.
var ErrNotFound = errors.New("storage: not found")

// ErrNotArray is returned when an array operation targets a non-array value.
var ErrNotArray = errors.New("storage: value is not an array")

// Matcher selects an array element in Find.
type Matcher func(raw json.RawMessage) bool

// Store is a path-addressed JSON document store.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Read decodes the value at path into dst.
	Read(ctx context.Context, path string, dst any) error
	// Write stores value at path, or appends it to the array at path when
	// appendToArray is set. A missing array is created.
	Write(ctx context.Context, path string, value any, appendToArray bool) error
	Delete(ctx context.Context, path string) error
	// Count returns the length of the array at path, 0 if absent.
	Count(ctx context.Context, path string) (int, error)
	// Find returns the first element of the array at path accepted by match.
	Find(ctx context.Context, path string, match Matcher) (json.RawMessage, error)
	Close() error
}
