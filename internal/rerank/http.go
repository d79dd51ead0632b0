package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPCrossEncoder calls a text-embeddings-inference compatible POST /rerank endpoint.
type HTTPCrossEncoder struct {
	URL    string
	Client *http.Client
}

// NewHTTPCrossEncoder creates a client for baseURL (with or without the /rerank suffix).
func NewHTTPCrossEncoder(baseURL string, timeout time.Duration) (*HTTPCrossEncoder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("cross-encoder url is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	url := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(url, "/rerank") {
		url += "/rerank"
	}
	return &HTTPCrossEncoder{URL: url, Client: &http.Client{Timeout: timeout}}, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankHit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Predict returns one raw score per text, in input order.
func (h *HTTPCrossEncoder) Predict(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(rerankRequest{Query: query, Texts: texts, RawScores: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var hits []rerankHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(hits) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrScoreCount, len(hits), len(texts))
	}
	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, hit := range hits {
		if hit.Index < 0 || hit.Index >= len(texts) || seen[hit.Index] {
			return nil, fmt.Errorf("rerank response has invalid index %d", hit.Index)
		}
		seen[hit.Index] = true
		scores[hit.Index] = hit.Score
	}
	return scores, nil
}
