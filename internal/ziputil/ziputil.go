// Package ziputil validates zip payloads.
package ziputil

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zip"
)

// Verify checks that data is a readable zip archive with at least one
// entry.
func Verify(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("not a zip archive: %w", err)
	}
	if len(r.File) == 0 {
		return errors.New("zip archive has no entries")
	}
	return nil
}
