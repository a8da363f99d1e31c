// Package blobcache stores immutable payloads in a flat directory
// addressed by content digest.
package blobcache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// Ref is an algorithm-qualified content digest, e.g. "sha256:9f86d0…".
// It is the stable identity of a stored payload and serializes as a plain
// string.
type Ref string

// ParseRef validates s as a content digest.
func ParseRef(s string) (Ref, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse blob ref: %w", err)
	}
	return Ref(d), nil
}

// Digest returns the underlying digest.
func (r Ref) Digest() digest.Digest {
	return digest.Digest(r)
}

// Hex returns the encoded hex portion of the digest, which is also the
// blob's file name on disk.
func (r Ref) Hex() string {
	return digest.Digest(r).Encoded()
}

// Validate reports whether the ref is a well-formed digest.
func (r Ref) Validate() error {
	return digest.Digest(r).Validate()
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	return string(r)
}

// Cache is a content-addressed blob directory. Files are named by the
// lowercase hex digest of their content and written atomically, so
// concurrent readers never observe partial content and concurrent writers
// of the same content converge on one file.
type Cache struct {
	dir string
}

// New returns a cache rooted at dir. No disk access happens until the
// first write; the directory is created lazily.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Write stores data and returns its ref. Content that is already present
// is not rewritten.
func (c *Cache) Write(data []byte) (Ref, error) {
	dgst := digest.FromBytes(data)
	ref := Ref(dgst)
	path := filepath.Join(c.dir, dgst.Encoded())

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, "."+dgst.Encoded()+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		// Another writer may have committed the same content first.
		if _, statErr := os.Stat(path); statErr == nil {
			return ref, nil
		}
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return ref, nil
}

// Path returns the local path for ref when its content is present.
func (c *Cache) Path(ref Ref) (string, bool) {
	if ref.Validate() != nil {
		return "", false
	}
	path := filepath.Join(c.dir, ref.Hex())
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
