// Package providercache persists provider-private state in one shared
// JSON document.
//
// Each provider owns a section keyed by its id and chooses its own section
// schema. Sections are opaque to the cache and to other providers, and
// sections belonging to providers that were never constructed in this
// process survive load/save cycles untouched.
package providercache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Cache is a persistent document of provider-private sections.
//
// A read-write mutex guards the section map. The write lock is held only
// while a section is decoded, mutated, and re-encoded; fn passed to Update
// must not perform network calls or other blocking I/O. Save snapshots the
// document under the read lock, so it may run concurrently with reads but
// never observes a half-applied update.
type Cache struct {
	path string

	mu       sync.RWMutex
	sections map[string]json.RawMessage
}

// Load reads the document at path. A missing file yields an empty cache
// bound to path; a malformed document is an error.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, sections: make(map[string]json.RawMessage)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.sections); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}
	return c, nil
}

// Path returns the document location on disk.
func (c *Cache) Path() string {
	return c.path
}

// Save writes the document atomically, creating parent directories as
// needed. The on-disk form is indented JSON with one top-level key per
// provider section.
func (c *Cache) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.sections, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(name, c.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("commit cache: %w", err)
	}
	return nil
}

// Read decodes provider's section into T. It reports false when the
// section is absent or does not match T's shape.
func Read[T any](c *Cache, provider string) (T, bool) {
	var v T
	c.mu.RLock()
	raw, ok := c.sections[provider]
	c.mu.RUnlock()
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// Update decodes provider's section into T, applies fn, and stores the
// re-encoded result. An absent or shape-incompatible section starts from
// T's zero value, so the section owner's current schema always wins.
//
// fn runs under the write lock and must not block; in particular it must
// not perform the network call whose result it records.
func Update[T any](c *Cache, provider string, fn func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var v T
	if raw, ok := c.sections[provider]; ok {
		if err := json.Unmarshal(raw, &v); err != nil {
			var zero T
			v = zero
		}
	}
	fn(&v)
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s section: %w", provider, err)
	}
	c.sections[provider] = raw
	return nil
}
