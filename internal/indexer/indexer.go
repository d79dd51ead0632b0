// Package indexer builds the vector index and aligned metadata table from chunked articles.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/embedding"
	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/storage"
	"github.com/hyperjump/cntsearch/internal/vector"
)

// ErrNoArticles is returned when every chunk has empty text.
var ErrNoArticles = errors.New("no article with text to index")

// Output names the files a build writes. DatabasePath is optional.
type Output struct {
	IndexPath    string
	MetaPath     string
	DatabasePath string
}

// BuildReport summarizes a completed build.
type BuildReport struct {
	TotalChunks  int           `json:"total_chunks"`
	Indexed      int           `json:"indexed"`
	Skipped      int           `json:"skipped"`
	Dimensions   int           `json:"embedding_dimension"`
	ModelName    string        `json:"model_name"`
	IndexType    string        `json:"index_type"`
	IndexPath    string        `json:"index_path"`
	MetaPath     string        `json:"meta_path"`
	DatabasePath string        `json:"database_path,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Builder embeds articles and writes the vector index and metadata table in the same row order.
type Builder struct {
	encoder    *embedding.PassageEncoder
	modelName  string
	indexType  string
	dimensions int
	logger     *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a builder that encodes passages with encoder into an index of indexType.
func NewBuilder(encoder *embedding.PassageEncoder, modelName, indexType string, dimensions int, opts ...BuilderOption) *Builder {
	b := &Builder{
		encoder:    encoder,
		modelName:  modelName,
		indexType:  indexType,
		dimensions: dimensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Records converts chunks into metadata rows and the passages to embed. Chunks whose
// trimmed full_text is empty are dropped; doc_id is the 1-based position among kept rows.
func Records(chunks []*Chunk) ([]*models.DocumentRecord, []string) {
	records := make([]*models.DocumentRecord, 0, len(chunks))
	passages := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		text := strings.TrimSpace(c.FullText)
		if text == "" {
			continue
		}
		rec := &models.DocumentRecord{
			DocID:         len(records) + 1,
			ArticleIDFull: c.FullNumber(),
			Title:         c.Title,
			TitleNumber:   string(c.Metadata.TitleNumber),
			TitleName:     c.Metadata.TitleName,
			ChapterNumber: string(c.Metadata.ChapterNumber),
			ChapterName:   c.Metadata.ChapterName,
			Context:       c.ContextLine(),
			CharLength:    c.Metadata.CharLength,
			WordLength:    c.Metadata.WordLength,
			HasParagraphs: c.Metadata.HasParagraphs,
			HasAmendments: c.Metadata.HasAmendments,
			TextFields:    map[string]string{"texto_completo": c.FullText},
		}
		if c.ArticleNumber != nil {
			n := *c.ArticleNumber
			rec.ArticleID = &n
		}
		records = append(records, rec)
		passages = append(passages, text)
	}
	return records, passages
}

// BuildFile loads chunksPath and runs Build.
func (b *Builder) BuildFile(ctx context.Context, chunksPath string, out Output) (*BuildReport, error) {
	chunks, err := LoadChunks(chunksPath)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, chunks, out)
}

// Build embeds chunks, saves the vector index to out.IndexPath, writes meta.jsonl to
// out.MetaPath and, when out.DatabasePath is set, imports the same rows into SQLite.
func (b *Builder) Build(ctx context.Context, chunks []*Chunk, out Output) (*BuildReport, error) {
	start := time.Now()
	records, passages := Records(chunks)
	if len(records) == 0 {
		return nil, ErrNoArticles
	}
	b.logger.Info("Encoding articles",
		zap.Int("chunks", len(chunks)),
		zap.Int("articles", len(records)),
		zap.String("model", b.modelName))

	vectors, err := b.encoder.EncodeBatch(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("encode passages: %w", err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d articles", len(vectors), len(records))
	}

	idx, err := vector.NewVectorIndex(b.indexType, b.dimensions)
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	if err := idx.Add(ctx, vectors); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out.IndexPath), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	if err := idx.Save(out.IndexPath); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}

	meta := storage.NewJSONLStore(out.MetaPath)
	if err := meta.WriteRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	if out.DatabasePath != "" {
		if err := writeSQLite(ctx, out.DatabasePath, records); err != nil {
			return nil, err
		}
	}

	report := &BuildReport{
		TotalChunks:  len(chunks),
		Indexed:      len(records),
		Skipped:      len(chunks) - len(records),
		Dimensions:   idx.Dimensions(),
		ModelName:    b.modelName,
		IndexType:    idx.Type(),
		IndexPath:    out.IndexPath,
		MetaPath:     out.MetaPath,
		DatabasePath: out.DatabasePath,
		Duration:     time.Since(start),
	}
	b.logger.Info("Index built",
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.String("index_path", report.IndexPath),
		zap.String("meta_path", report.MetaPath),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func writeSQLite(ctx context.Context, path string, records []*models.DocumentRecord) error {
	db, err := storage.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("open metadata database: %w", err)
	}
	defer db.Close()
	if err := db.WriteRecords(ctx, records); err != nil {
		return fmt.Errorf("import metadata into sqlite: %w", err)
	}
	return nil
}
