package search

import (
	"sort"

	"github.com/hyperjump/cntsearch/internal/models"
)

// Lexical blend weights: final = SemanticWeight*score + LexicalWeight*(lexical/LexicalScale).
const (
	SemanticWeight = 0.7
	LexicalWeight  = 0.3
	LexicalScale   = 10.0
)

// BlendLexical mixes lexical scores into the candidates' current scores in place.
// lexical must have one entry per candidate.
func BlendLexical(candidates []*models.SearchResult, lexical []float64) {
	for i, c := range candidates {
		if i >= len(lexical) {
			return
		}
		c.Score = SemanticWeight*c.Score + LexicalWeight*(lexical[i]/LexicalScale)
	}
}

// ReplaceScores overwrites candidate scores with scores (same length, same order).
func ReplaceScores(candidates []*models.SearchResult, scores []float64) {
	for i, c := range candidates {
		if i >= len(scores) {
			return
		}
		c.Score = scores[i]
	}
}

// Assemble sorts candidates by score descending, keeping input order on ties (direct
// hits precede semantic ones), truncates to topK and assigns 1-based ranks.
func Assemble(candidates []*models.SearchResult, topK int) []*models.SearchResult {
	out := make([]*models.SearchResult, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK < 0 {
		topK = 0
	}
	if topK < len(out) {
		out = out[:topK]
	}
	for i, r := range out {
		r.Rank = i + 1
	}
	return out
}
