package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/cntsearch/internal/models"
)

const maxLineBytes = 16 * 1024 * 1024

// JSONLStore reads and writes the metadata table as one JSON object per line.
type JSONLStore struct {
	path string
}

// NewJSONLStore returns a store for the meta.jsonl file at path.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Path returns the backing file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// Records reads the file in order. Blank lines are skipped; a malformed line is an error
// naming its line number.
func (s *JSONLStore) Records(ctx context.Context) ([]*models.DocumentRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var records []*models.DocumentRecord
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec models.DocumentRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("metadata line %d: %w", lineNo, err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return records, nil
}

// WriteRecords writes records to a temporary file and renames it over the target so
// readers never observe a partial table.
func (s *JSONLStore) WriteRecords(ctx context.Context, records []*models.DocumentRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return err
		}
		if err := enc.Encode(rec); err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("encode record %d: %w", rec.DocID, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("flush metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

// Close is a no-op for JSONLStore.
func (s *JSONLStore) Close() error {
	return nil
}
