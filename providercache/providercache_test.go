package providercache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type testSection struct {
	Names map[string]int `json:"names,omitempty"`
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Path() != path {
		t.Fatalf("Path() = %s, want %s", c.Path(), path)
	}
	if _, ok := Read[testSection](c, "any"); ok {
		t.Fatal("Read() ok = true on empty cache")
	}

	if err := c.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file missing after save: %v", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil for malformed document")
	}
}

func TestUpdateReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	err = Update(c, "prov", func(s *testSection) {
		s.Names = map[string]int{"alpha": 7}
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, ok := Read[testSection](c, "prov")
	if !ok {
		t.Fatal("Read() ok = false after update")
	}
	if got.Names["alpha"] != 7 {
		t.Fatalf("Read() names = %v, want alpha=7", got.Names)
	}

	if err := c.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, ok = Read[testSection](reloaded, "prov")
	if !ok {
		t.Fatal("Read() ok = false after reload")
	}
	if got.Names["alpha"] != 7 {
		t.Fatalf("Read() names after reload = %v, want alpha=7", got.Names)
	}
}

func TestUnknownSectionSurvives(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	seed := []byte(`{"legacy":{"keep":true,"count":3}}`)
	if err := os.WriteFile(path, seed, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	err = Update(c, "mine", func(s *testSection) {
		s.Names = map[string]int{"beta": 1}
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	var legacy map[string]any
	if err := json.Unmarshal(doc["legacy"], &legacy); err != nil {
		t.Fatalf("Unmarshal() legacy error = %v", err)
	}
	want := map[string]any{"keep": true, "count": float64(3)}
	if !reflect.DeepEqual(legacy, want) {
		t.Fatalf("legacy section = %v, want %v", legacy, want)
	}
}

func TestUpdateIncompatibleSection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(`{"prov":"just a string"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// The stored shape does not decode into testSection; Update starts
	// from the zero value instead of failing.
	err = Update(c, "prov", func(s *testSection) {
		if s.Names != nil {
			t.Fatalf("Update() started from %v, want zero value", s.Names)
		}
		s.Names = map[string]int{"gamma": 9}
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, ok := Read[testSection](c, "prov")
	if !ok {
		t.Fatal("Read() ok = false after update")
	}
	if got.Names["gamma"] != 9 {
		t.Fatalf("Read() names = %v, want gamma=9", got.Names)
	}
}

func TestSaveCreatesParentDirs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deep", "cache.json")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file missing after save: %v", err)
	}
}

func TestSaveIndented(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	err = Update(c, "prov", func(s *testSection) {
		s.Names = map[string]int{"alpha": 1}
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '}' {
		t.Fatalf("cache document = %q, want JSON object", data)
	}
	if !json.Valid(data) {
		t.Fatalf("cache document is not valid JSON: %q", data)
	}
}
