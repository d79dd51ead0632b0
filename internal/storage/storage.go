// Package storage provides the metadata table backends (JSONL file, SQLite) aligned with the vector index.
package storage

import (
	"context"

	"github.com/hyperjump/cntsearch/internal/models"
)

// MetadataSource yields the metadata table in row order. Row i must correspond to
// vector-index row i.
type MetadataSource interface {
	Records(ctx context.Context) ([]*models.DocumentRecord, error)
	Close() error
}

// MetadataWriter persists a full metadata table, replacing any previous content.
type MetadataWriter interface {
	WriteRecords(ctx context.Context, records []*models.DocumentRecord) error
}
