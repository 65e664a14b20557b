// Package archive packs evidence files into a zip container.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/klauspost/compress/zip"
)

// maxEntrySize bounds a single decompressed entry on Unpack
const maxEntrySize = 256 << 20

// ZipArchiver writes files in the order given, stamped with a fixed
// modification time so identical input yields identical bytes.
type ZipArchiver struct {
	modified time.Time
}

// NewZipArchiver creates a zip archiver. A zero modified time uses the
// zip epoch (1980-01-01).
func NewZipArchiver(modified time.Time) *ZipArchiver {
	if modified.IsZero() {
		modified = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &ZipArchiver{modified: modified.UTC()}
}

// Pack returns the zip encoding of files
func (a *ZipArchiver) Pack(files []domain.NamedBlob) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("duplicate archive entry %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: a.modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create archive entry %q: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write archive entry %q: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack reads every entry of a zip archive in stored order
func Unpack(data []byte) ([]domain.NamedBlob, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	files := make([]domain.NamedBlob, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %q: %w", f.Name, err)
		}
		if len(content) > maxEntrySize {
			return nil, fmt.Errorf("archive entry %q exceeds %d bytes", f.Name, maxEntrySize)
		}
		files = append(files, domain.NamedBlob{Name: f.Name, Data: content})
	}
	return files, nil
}
