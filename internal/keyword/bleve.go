package keyword

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const bleveTextField = "texto"

// BleveScorer scores candidates with Bleve's relevance model. Each call builds a
// throwaway in-memory index holding only the candidate texts.
type BleveScorer struct {
	mapping mapping.IndexMapping
}

type bleveDoc struct {
	Texto string `json:"texto"`
}

// NewBleveScorer builds and validates the index mapping.
func NewBleveScorer() (*BleveScorer, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and tokenizes without stemming.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(bleveTextField, textFieldMapping)
	im.DefaultMapping = docMapping
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Bleve mapping: %w", err)
	}
	return &BleveScorer{mapping: im}, nil
}

// Name returns the backend name.
func (b *BleveScorer) Name() string {
	return BackendBleve
}

// Scores indexes docs in memory and runs a match query built from queryTokens.
// Docs that do not match score 0.
func (b *BleveScorer) Scores(ctx context.Context, queryTokens []string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	if len(docs) == 0 || len(queryTokens) == 0 {
		return scores, nil
	}

	index, err := bleve.NewMemOnly(b.mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, d := range docs {
		if err := batch.Index(strconv.Itoa(i), bleveDoc{Texto: d}); err != nil {
			return nil, fmt.Errorf("Bleve index doc %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("Bleve batch failed: %w", err)
	}

	q := bleve.NewMatchQuery(strings.Join(queryTokens, " "))
	q.SetField(bleveTextField)
	req := bleve.NewSearchRequest(q)
	req.Size = len(docs)
	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(scores) {
			continue
		}
		scores[i] = hit.Score
	}
	return scores, nil
}
