// Package corpus holds the aligned metadata table and vector index the retriever searches.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/storage"
	"github.com/hyperjump/cntsearch/internal/vector"
)

// ErrMisaligned is returned when the vector index and metadata table have different row counts.
var ErrMisaligned = errors.New("vector index and metadata are misaligned")

// Corpus is an immutable, row-aligned view of metadata records and their vectors.
// Row i of Records corresponds to row i of the vector index.
type Corpus struct {
	records     []*models.DocumentRecord
	texts       []string
	articleRows map[int]int
	index       vector.VectorIndex
	resolver    *TextResolver
}

// New checks alignment and builds the resolved-text column and the article lookup.
// When several rows share an article number the last row wins.
func New(records []*models.DocumentRecord, index vector.VectorIndex, resolver *TextResolver) (*Corpus, error) {
	if index == nil {
		return nil, fmt.Errorf("vector index is nil")
	}
	if resolver == nil {
		resolver = NewTextResolver(nil)
	}
	if index.Size() != len(records) {
		return nil, fmt.Errorf("%w: index has %d vectors, metadata has %d rows", ErrMisaligned, index.Size(), len(records))
	}

	c := &Corpus{
		records:     records,
		texts:       make([]string, len(records)),
		articleRows: make(map[int]int),
		index:       index,
		resolver:    resolver,
	}
	for i, rec := range records {
		c.texts[i] = resolver.Resolve(rec)
		if rec != nil && rec.ArticleID != nil {
			c.articleRows[*rec.ArticleID] = i
		}
	}
	return c, nil
}

// Load reads all records from source and pairs them with an already loaded index.
func Load(ctx context.Context, source storage.MetadataSource, index vector.VectorIndex, resolver *TextResolver) (*Corpus, error) {
	records, err := source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return New(records, index, resolver)
}

// Size returns the number of rows.
func (c *Corpus) Size() int {
	return len(c.records)
}

// Dimensions returns the vector dimensionality of the index.
func (c *Corpus) Dimensions() int {
	return c.index.Dimensions()
}

// Index returns the underlying vector index.
func (c *Corpus) Index() vector.VectorIndex {
	return c.index
}

// Resolver returns the text resolver used for this corpus.
func (c *Corpus) Resolver() *TextResolver {
	return c.resolver
}

// Record returns the record at row, or false when row is out of range.
func (c *Corpus) Record(row int) (*models.DocumentRecord, bool) {
	if row < 0 || row >= len(c.records) {
		return nil, false
	}
	return c.records[row], true
}

// Text returns the resolved text of row ("" when out of range).
func (c *Corpus) Text(row int) string {
	if row < 0 || row >= len(c.texts) {
		return ""
	}
	return c.texts[row]
}

// RowForArticle returns the row holding article number n.
func (c *Corpus) RowForArticle(n int) (int, bool) {
	row, ok := c.articleRows[n]
	return row, ok
}

// Articles returns the distinct article numbers in ascending order.
func (c *Corpus) Articles() []int {
	out := make([]int, 0, len(c.articleRows))
	for n := range c.articleRows {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Close releases the vector index.
func (c *Corpus) Close() error {
	return c.index.Close()
}
