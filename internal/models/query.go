package models

import (
	"fmt"
	"strings"
)

// MaxTopK caps the number of results a single request may ask for.
const MaxTopK = 50

// SearchQuery is a search (or ask) request. A nil TopK means the configured default.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// Validate trims the query and checks the requested result count.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK != nil {
		if *q.TopK < 0 {
			return fmt.Errorf("top_k must not be negative")
		}
		if *q.TopK > MaxTopK {
			k := MaxTopK
			q.TopK = &k
		}
	}
	return nil
}

// Limit returns the requested result count, or -1 to use the engine default.
func (q *SearchQuery) Limit() int {
	if q.TopK == nil {
		return -1
	}
	return *q.TopK
}

// CompressRequest asks the context compressor to fit articles into a character budget.
type CompressRequest struct {
	Query         string          `json:"query"`
	Articles      []*SearchResult `json:"articles"`
	MaxTotalChars int             `json:"max_total_chars,omitempty"`
}

// Validate checks the compress request.
func (c *CompressRequest) Validate() error {
	if c.MaxTotalChars < 0 {
		return fmt.Errorf("max_total_chars must not be negative")
	}
	for i, a := range c.Articles {
		if a == nil {
			return fmt.Errorf("article %d is null", i)
		}
	}
	return nil
}
