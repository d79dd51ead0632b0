package models

import "strconv"

// Source is the provenance of a search hit.
type Source string

const (
	// SourceDirect marks hits resolved from an explicit article reference in the query.
	SourceDirect Source = "direct"
	// SourceSemantic marks hits from vector similarity search.
	SourceSemantic Source = "semantic"
)

// SearchResult is a scored snapshot of a DocumentRecord produced by one search call.
// It holds copies of the record fields, never a reference to the corpus row.
type SearchResult struct {
	Score float64 `json:"score"`
	// SemanticScore is the similarity (or 1.0 for direct hits) before any re-scoring.
	SemanticScore float64 `json:"semantic_score"`
	Source        Source  `json:"source"`
	DocID         int     `json:"doc_id"`
	ArticleID     *int    `json:"articulo"`
	ArticleIDFull string  `json:"articulo_completo,omitempty"`
	Title         string  `json:"titulo,omitempty"`
	TitleName     string  `json:"titulo_nombre,omitempty"`
	ChapterNumber string  `json:"capitulo_numero,omitempty"`
	ChapterName   string  `json:"capitulo_nombre,omitempty"`
	Heading       string  `json:"epigrafe,omitempty"`
	Text          string  `json:"texto"`
	Rank          int     `json:"rank,omitempty"`
	// Compressed is set by the context compressor; Content then holds the shortened text.
	Compressed bool   `json:"compressed,omitempty"`
	Content    string `json:"content,omitempty"`
}

// NewSearchResult snapshots rec with the given score, source and resolved text.
func NewSearchResult(rec *DocumentRecord, text string, score float64, source Source) *SearchResult {
	res := &SearchResult{
		Score:         score,
		SemanticScore: score,
		Source:        source,
		DocID:         rec.DocID,
		ArticleIDFull: rec.ArticleIDFull,
		Title:         rec.Title,
		TitleName:     rec.TitleName,
		ChapterNumber: rec.ChapterNumber,
		ChapterName:   rec.ChapterName,
		Heading:       rec.Heading,
		Text:          text,
	}
	if rec.ArticleID != nil {
		a := *rec.ArticleID
		res.ArticleID = &a
	}
	return res
}

// ContextText returns the text a downstream consumer should read: the compressed
// content when present, otherwise the resolved article text.
func (r *SearchResult) ContextText() string {
	if r.Compressed {
		return r.Content
	}
	return r.Text
}

// ArticleLabel returns the most specific article identifier available, or "N/A".
func (r *SearchResult) ArticleLabel() string {
	if r.ArticleIDFull != "" {
		return r.ArticleIDFull
	}
	if r.ArticleID != nil {
		return strconv.Itoa(*r.ArticleID)
	}
	return "N/A"
}

// Clone returns a shallow copy with its own ArticleID pointer.
func (r *SearchResult) Clone() *SearchResult {
	c := *r
	if r.ArticleID != nil {
		a := *r.ArticleID
		c.ArticleID = &a
	}
	return &c
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Cached    bool            `json:"cached,omitempty"`
}

// Usage reports token accounting from the language model.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is a generated answer grounded on retrieved articles.
type Answer struct {
	ID           string          `json:"id"`
	Query        string          `json:"query"`
	Answer       string          `json:"answer"`
	Model        string          `json:"model,omitempty"`
	ArticlesUsed []string        `json:"articles_used"`
	Articles     []*SearchResult `json:"articles,omitempty"`
	Usage        Usage           `json:"usage"`
	QueryTime    int64           `json:"query_time_ms"`
}
