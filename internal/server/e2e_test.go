package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cntsearch/internal/bootstrap"
	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/embedding"
	"github.com/hyperjump/cntsearch/internal/indexer"
	"github.com/hyperjump/cntsearch/internal/models"
)

const (
	e2eDimensions = 32
	e2eArticles   = 60
)

var e2eTopics = []struct {
	title string
	text  string
}{
	{"Licencia de conducción", "Para conducir vehículos automotores se requiere licencia de conducción vigente."},
	{"Seguro obligatorio", "Todo vehículo automotor debe portar el seguro obligatorio de accidentes de tránsito SOAT."},
	{"Límites de velocidad", "En vías urbanas la velocidad máxima será de sesenta kilómetros por hora."},
	{"Embriaguez", "Se prohíbe conducir en estado de embriaguez o bajo el efecto de sustancias psicoactivas."},
	{"Cinturón de seguridad", "Es obligatorio el uso del cinturón de seguridad para conductor y pasajeros."},
	{"Revisión técnico-mecánica", "Los vehículos deben someterse a revisión técnico-mecánica y de emisiones contaminantes."},
}

// e2eChunks returns articles 100..100+n-1 with topics assigned round-robin.
func e2eChunks(n int) []*indexer.Chunk {
	chunks := make([]*indexer.Chunk, n)
	for i := range chunks {
		num := 100 + i
		topic := e2eTopics[i%len(e2eTopics)]
		chunks[i] = &indexer.Chunk{
			ArticleNumber: &num,
			Title:         topic.title,
			FullText:      fmt.Sprintf("ARTÍCULO %d. %s %s Disposición %d.", num, topic.title, topic.text, num),
			Metadata: indexer.ChunkMetadata{
				TitleName:   "Normas de comportamiento",
				ChapterName: topic.title,
			},
		}
	}
	return chunks
}

// fakeOllama answers /api/chat with the article numbers it finds in the user prompt.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		user := req.Messages[len(req.Messages)-1].Content
		answer := "No encontré información."
		if strings.Contains(user, "ARTÍCULO 131") {
			answer = "Según el Artículo 131, se aplica la sanción."
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             req.Model,
			"message":           map[string]string{"role": "assistant", "content": answer},
			"done":              true,
			"prompt_eval_count": 200,
			"eval_count":        15,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newE2EServer(t *testing.T) (http.Handler, *bootstrap.Components) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.IndexPath = filepath.Join(dir, "index", "vectors.bin")
	cfg.Storage.MetaPath = filepath.Join(dir, "index", "meta.jsonl")
	cfg.Embedding.Provider = bootstrap.ProviderMock
	cfg.Embedding.Dimensions = e2eDimensions
	cfg.Vector.IndexType = "memory"
	cfg.Retriever.BM25.Enabled = true
	cfg.Generator.OllamaURL = fakeOllama(t).URL

	enc := embedding.NewPassageEncoder(embedding.NewMockEmbedder(e2eDimensions), cfg.Embedding.ModelName, 16)
	report, err := indexer.NewBuilder(enc, cfg.Embedding.ModelName, cfg.Vector.IndexType, e2eDimensions).
		Build(context.Background(), e2eChunks(e2eArticles), indexer.Output{
			IndexPath: cfg.Storage.IndexPath,
			MetaPath:  cfg.Storage.MetaPath,
		})
	require.NoError(t, err)
	require.Equal(t, e2eArticles, report.Indexed)

	components, err := bootstrap.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(components.Close)

	srv := NewServer(components.Engines, cfg, WithGenerator(components.Generator))
	components.Engines.OnReload(srv.InvalidateCache)
	return srv.Handler(), components
}

func articleNumbers(results []*models.SearchResult) []int {
	out := make([]int, 0, len(results))
	for _, r := range results {
		if r.ArticleID != nil {
			out = append(out, *r.ArticleID)
		}
	}
	return out
}

func TestE2E_directReferences(t *testing.T) {
	h, _ := newE2EServer(t)

	tests := []struct {
		query string
		want  []int
	}{
		{"artículo 131", []int{131}},
		{"¿Qué dice el art. 106?", []int{106}},
		{"art. 120 y artículo 145", []int{120, 145}},
		{"Artículo 131 y artículo 131", []int{131}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			k := 5
			w := do(t, h, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: tt.query, TopK: &k})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var resp models.SearchResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.LessOrEqual(t, len(resp.Results), k)

			got := articleNumbers(resp.Results)
			require.GreaterOrEqual(t, len(got), len(tt.want))
			assert.ElementsMatch(t, tt.want, got[:len(tt.want)])
			for _, r := range resp.Results[:len(tt.want)] {
				assert.Equal(t, models.SourceDirect, r.Source)
			}
			seen := map[int]bool{}
			for _, n := range got {
				assert.False(t, seen[n], "article %d returned twice", n)
				seen[n] = true
			}
		})
	}
}

func TestE2E_semanticQueries(t *testing.T) {
	h, _ := newE2EServer(t)

	for _, q := range []string{"límite de velocidad en vías urbanas", "seguro obligatorio SOAT", "conducir embriagado"} {
		t.Run(q, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: q})
			require.Equal(t, http.StatusOK, w.Code)
			var resp models.SearchResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.LessOrEqual(t, len(resp.Results), 5)
			for i := 1; i < len(resp.Results); i++ {
				assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
			}
		})
	}
}

func TestE2E_articleAndAsk(t *testing.T) {
	h, _ := newE2EServer(t)

	w := do(t, h, http.MethodGet, "/api/v1/articles/131", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var art models.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &art))
	assert.Contains(t, art.Text, "ARTÍCULO 131.")

	w = do(t, h, http.MethodPost, "/api/v1/ask", models.SearchQuery{Query: "¿Qué sanción trae el artículo 131?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var answer models.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &answer))
	assert.Equal(t, "Según el Artículo 131, se aplica la sanción.", answer.Answer)
	assert.Contains(t, answer.ArticlesUsed, "131")
	assert.Equal(t, 215, answer.Usage.TotalTokens)
}

func TestE2E_reloadFlushesCache(t *testing.T) {
	h, components := newE2EServer(t)
	cfg := components.Config

	w := do(t, h, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "artículo 170"})
	require.Equal(t, http.StatusOK, w.Code)
	var before models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))
	for _, r := range before.Results {
		assert.NotEqual(t, models.SourceDirect, r.Source)
	}

	enc := embedding.NewPassageEncoder(embedding.NewMockEmbedder(e2eDimensions), cfg.Embedding.ModelName, 16)
	_, err := indexer.NewBuilder(enc, cfg.Embedding.ModelName, cfg.Vector.IndexType, e2eDimensions).
		Build(context.Background(), e2eChunks(e2eArticles+20), indexer.Output{
			IndexPath: cfg.Storage.IndexPath,
			MetaPath:  cfg.Storage.MetaPath,
		})
	require.NoError(t, err)
	require.NoError(t, components.Engines.Reload(context.Background()))

	w = do(t, h, http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "artículo 170"})
	require.Equal(t, http.StatusOK, w.Code)
	var after models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.False(t, after.Cached)
	require.NotEmpty(t, after.Results)
	assert.Equal(t, 170, *after.Results[0].ArticleID)
	assert.Equal(t, models.SourceDirect, after.Results[0].Source)
}
