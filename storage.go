package twitter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// writeFileAtomic writes through fn into a pending file next to path and
// renames it into place, so readers never observe a half-written artifact.
func writeFileAtomic(path string, fn func(w io.Writer) error) error {
	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0644))
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersistence, path, err)
	}
	defer pf.Cleanup()

	bw := bufio.NewWriter(pf)
	if err := fn(bw); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrPersistence, path, err)
	}
	return nil
}

// WriteLines writes one line per element, joined by newlines, without a
// trailing newline.
func WriteLines(path string, lines []string) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, strings.Join(lines, "\n"))
		return err
	})
}

// WriteURLs writes the URL of each record, in order, one per line.
func WriteURLs(path string, records []PostRecord) error {
	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = r.URL
	}
	return WriteLines(path, urls)
}

// WriteLinks writes collected post links one per line.
func WriteLinks(path string, links []PostURL) error {
	lines := make([]string, len(links))
	for i, l := range links {
		lines[i] = string(l)
	}
	return WriteLines(path, lines)
}

// WriteRecords writes records as an indented JSON array.
func WriteRecords(path string, records []PostRecord) error {
	if records == nil {
		records = []PostRecord{}
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	})
}

// ReadRecords loads a records file written by WriteRecords.
func ReadRecords(path string) ([]PostRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}
	var records []PostRecord
	if err := json.Unmarshal(bytes.TrimSpace(data), &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrMalformedRecord, path, err)
	}
	return records, nil
}
