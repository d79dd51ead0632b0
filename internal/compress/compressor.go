// Package compress shortens retrieved articles by extractive sentence selection so the
// combined context fits a character budget.
package compress

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/pkg/utils"
)

// DefaultMaxContextChars is the total budget used when none is given.
const DefaultMaxContextChars = 8000

var (
	legalTerms = []string{"multa", "sanción", "infracción", "prohib", "oblig"}
	modalTerms = []string{"debe", "deberá", "podrá", "será"}
)

// Compressor fits article texts into a character budget. Lengths are counted in runes.
type Compressor struct {
	logger *zap.Logger
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithLogger sets the logger (default: no-op).
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compressor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Compressor.
func New(opts ...Option) *Compressor {
	c := &Compressor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// articleText is the resolved text, or Content for articles that only carry
// compressed output.
func articleText(r *models.SearchResult) string {
	if t := strings.TrimSpace(r.Text); t != "" {
		return t
	}
	return strings.TrimSpace(r.Content)
}

// CompressContext returns articles unchanged when their combined text fits maxTotalChars.
// Otherwise every article longer than maxTotalChars/len(articles) is replaced by a copy
// with Compressed set and the shortened text in Content. Inputs are never modified.
func (c *Compressor) CompressContext(articles []*models.SearchResult, query string, maxTotalChars int) []*models.SearchResult {
	total := 0
	for _, a := range articles {
		total += utils.RuneLen(articleText(a))
	}
	if total <= maxTotalChars {
		return articles
	}

	perArticle := maxTotalChars
	if len(articles) > 0 {
		perArticle = maxTotalChars / len(articles)
	}

	out := make([]*models.SearchResult, len(articles))
	compressed := 0
	for i, a := range articles {
		text := articleText(a)
		if utils.RuneLen(text) <= perArticle {
			out[i] = a
			continue
		}
		cp := a.Clone()
		cp.Compressed = true
		cp.Content = c.CompressArticle(text, query, perArticle)
		out[i] = cp
		compressed++
	}
	c.logger.Debug("compressed context",
		zap.Int("total_chars", total),
		zap.Int("budget", maxTotalChars),
		zap.Int("per_article", perArticle),
		zap.Int("compressed", compressed))
	return out
}

// CompressArticle keeps the article header line and the highest-scoring sentences that
// fit in maxChars. Text already within maxChars is returned as is.
func (c *Compressor) CompressArticle(text, query string, maxChars int) string {
	if utils.RuneLen(text) <= maxChars {
		return text
	}

	lines := strings.Split(text, "\n")
	header := ""
	bodyStart := 0
	for i, line := range lines {
		upper := strings.ToUpper(line)
		if strings.Contains(upper, "ARTÍCULO") || strings.Contains(upper, "ART.") {
			header = strings.TrimSpace(line)
			bodyStart = i + 1
			break
		}
	}

	sentences := SplitSentences(strings.Join(lines[bodyStart:], "\n"))
	if len(sentences) == 0 {
		return utils.TakeRunes(text, maxChars)
	}

	terms := QueryTerms(query)
	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		ranked[i] = scored{text: s, score: ScoreSentence(s, terms)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	current := 0
	if header != "" {
		current = utils.RuneLen(header) + 1
	}
	limit := float64(maxChars) * 0.9
	var selected []string
	for _, s := range ranked {
		n := utils.RuneLen(s.text)
		if current+n+2 <= maxChars {
			selected = append(selected, s.text)
			current += n + 2
		}
		if float64(current) >= limit {
			break
		}
	}

	var parts []string
	if header != "" {
		parts = append(parts, header)
	}
	if len(selected) > 0 {
		parts = append(parts, strings.Join(selected, " "))
	}
	result := strings.Join(parts, "\n")
	if utils.RuneLen(result) > maxChars {
		result = utils.TakeRunes(result, maxChars) + "..."
	}
	return result
}

// ScoreSentence rates a sentence by query-term occurrences plus legal and modal
// keyword bonuses, scaled down for very short or very long sentences.
func ScoreSentence(sentence string, terms []string) float64 {
	s := strings.ToLower(sentence)
	var score float64
	for _, t := range terms {
		if t != "" {
			score += float64(strings.Count(s, t))
		}
	}
	if containsAny(s, legalTerms) {
		score += 0.5
	}
	if containsAny(s, modalTerms) {
		score += 0.3
	}

	switch n := utils.RuneLen(sentence); {
	case n < 50:
		score *= 0.5
	case n > 300:
		score *= 0.7
	}
	return score
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
