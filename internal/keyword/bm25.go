package keyword

import (
	"context"
	"math"
)

// Okapi BM25 defaults.
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// BM25 is an Okapi BM25 scorer over an ad-hoc corpus (the candidate texts of one query).
// Negative idf values (terms in more than half the docs) are replaced by
// Epsilon times the average idf.
type BM25 struct {
	K1      float64
	B       float64
	Epsilon float64
}

// NewBM25 returns a scorer with the default parameters.
func NewBM25() *BM25 {
	return &BM25{K1: DefaultK1, B: DefaultB, Epsilon: DefaultEpsilon}
}

// Name returns the backend name.
func (s *BM25) Name() string {
	return BackendBM25
}

// Scores tokenizes docs and scores them against queryTokens.
func (s *BM25) Scores(ctx context.Context, queryTokens []string, docs []string) ([]float64, error) {
	corpus := make([][]string, len(docs))
	for i, d := range docs {
		corpus[i] = Tokenize(d)
	}
	return s.ScoreTokens(queryTokens, corpus), nil
}

// ScoreTokens scores pre-tokenized docs. Repeated query tokens count once per occurrence.
func (s *BM25) ScoreTokens(queryTokens []string, corpus [][]string) []float64 {
	scores := make([]float64, len(corpus))
	n := len(corpus)
	if n == 0 || len(queryTokens) == 0 {
		return scores
	}

	freqs := make([]map[string]int, n)
	lengths := make([]float64, n)
	df := make(map[string]int)
	var total float64
	for i, doc := range corpus {
		f := make(map[string]int, len(doc))
		for _, tok := range doc {
			f[tok]++
		}
		for tok := range f {
			df[tok]++
		}
		freqs[i] = f
		lengths[i] = float64(len(doc))
		total += float64(len(doc))
	}
	avgdl := total / float64(n)
	if avgdl == 0 {
		return scores
	}

	idf := s.idf(df, n)
	for _, q := range queryTokens {
		w := idf[q]
		if w == 0 {
			continue
		}
		for i := range corpus {
			tf := float64(freqs[i][q])
			if tf == 0 {
				continue
			}
			scores[i] += w * (tf * (s.K1 + 1) / (tf + s.K1*(1-s.B+s.B*lengths[i]/avgdl)))
		}
	}
	return scores
}

func (s *BM25) idf(df map[string]int, n int) map[string]float64 {
	idf := make(map[string]float64, len(df))
	if len(df) == 0 {
		return idf
	}
	var sum float64
	var negative []string
	for term, freq := range df {
		v := math.Log(float64(n)-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		idf[term] = v
		sum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	eps := s.Epsilon * sum / float64(len(df))
	for _, term := range negative {
		idf[term] = eps
	}
	return idf
}
