package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	var got ollamaEmbeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{0.5, -0.25}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 2, time.Second)
	vecs, err := e.EmbedBatch(context.Background(), []string{"query: señal de pare"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, -0.25}}, vecs)
	assert.Equal(t, "nomic-embed-text", got.Model)
	assert.Equal(t, "query: señal de pare", got.Prompt)
	assert.Equal(t, 2, e.Dimensions())
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}},
		{"empty embedding", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"embedding":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewOllamaEmbedder(srv.URL, "m", 2, time.Second).Embed(context.Background(), "x")
			assert.Error(t, err)
		})
	}
}
