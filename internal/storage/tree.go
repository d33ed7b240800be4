package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Selector converts a store path ("/a/b") into a gjson/sjson path ("a.b").
func Selector(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, escapeComponent(p))
	}
	return strings.Join(out, ".")
}

// SplitRoot returns the first path component and the selector for the rest.
func SplitRoot(path string) (root, rest string) {
	trimmed := strings.Trim(path, "/")
	root, tail, _ := strings.Cut(trimmed, "/")
	return root, Selector(tail)
}

func escapeComponent(p string) string {
	var b strings.Builder
	for _, r := range p {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Lookup returns the value at selector inside doc.
func Lookup(doc []byte, selector string) gjson.Result {
	if selector == "" {
		return gjson.ParseBytes(doc)
	}
	return gjson.GetBytes(doc, selector)
}

// Decode unmarshals a looked up value into dst.
func Decode(r gjson.Result, dst any) error {
	if !r.Exists() {
		return ErrNotFound
	}
	if err := json.Unmarshal([]byte(r.Raw), dst); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// Put sets or appends value at selector inside doc and returns the new doc.
func Put(doc []byte, selector string, value any, appendToArray bool) ([]byte, error) {
	if selector == "" {
		return nil, fmt.Errorf("put: empty path")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	if !appendToArray {
		return sjson.SetRawBytes(doc, selector, raw)
	}

	current := Lookup(doc, selector)
	if !current.Exists() {
		if doc, err = sjson.SetRawBytes(doc, selector, []byte("[]")); err != nil {
			return nil, err
		}
	} else if !current.IsArray() {
		return nil, ErrNotArray
	}
	return sjson.SetRawBytes(doc, selector+".-1", raw)
}

// Remove deletes selector from doc.
func Remove(doc []byte, selector string) ([]byte, error) {
	if !Lookup(doc, selector).Exists() {
		return doc, nil
	}
	return sjson.DeleteBytes(doc, selector)
}

// CountIn returns the length of the array at selector.
func CountIn(doc []byte, selector string) (int, error) {
	r := Lookup(doc, selector)
	if !r.Exists() {
		return 0, nil
	}
	if !r.IsArray() {
		return 0, ErrNotArray
	}
	return len(r.Array()), nil
}

// FindIn returns the first element of the array at selector accepted by match.
func FindIn(doc []byte, selector string, match Matcher) (json.RawMessage, error) {
	r := Lookup(doc, selector)
	if !r.Exists() {
		return nil, ErrNotFound
	}
	if !r.IsArray() {
		return nil, ErrNotArray
	}
	for _, el := range r.Array() {
		raw := json.RawMessage(el.Raw)
		if match(raw) {
			return raw, nil
		}
	}
	return nil, ErrNotFound
}
