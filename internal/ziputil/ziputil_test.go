package ziputil

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zip"
)

func archive(t *testing.T, names ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := f.Write([]byte("content of " + name)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestVerify(t *testing.T) {
	t.Parallel()

	if err := Verify(archive(t, "mod.txt", "assets/tex.png")); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerifyNotZip(t *testing.T) {
	t.Parallel()

	if err := Verify([]byte("this is not an archive")); err == nil {
		t.Fatal("Verify() error = nil for non-zip data")
	}
	if err := Verify(nil); err == nil {
		t.Fatal("Verify() error = nil for empty data")
	}
}

func TestVerifyNoEntries(t *testing.T) {
	t.Parallel()

	if err := Verify(archive(t)); err == nil {
		t.Fatal("Verify() error = nil for empty archive")
	}
}
