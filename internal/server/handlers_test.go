package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/corpus"
	"github.com/hyperjump/cntsearch/internal/embedding"
	"github.com/hyperjump/cntsearch/internal/generator"
	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/search"
	"github.com/hyperjump/cntsearch/internal/vector"
)

const testModel = "intfloat/multilingual-e5-base"

type staticEngine struct{ e *search.Engine }

func (s staticEngine) Engine() *search.Engine { return s.e }

type fakeLLM struct {
	calls int
}

func (f *fakeLLM) Chat(_ context.Context, messages []generator.Message, _ ...generator.ChatOption) (*generator.ChatResponse, error) {
	f.calls++
	return &generator.ChatResponse{Content: "Respuesta de prueba (Artículo 118).", Model: "test-model"}, nil
}

var testArticles = []struct {
	article int
	text    string
}{
	{106, "Artículo 106. Límites de velocidad en zonas urbanas. En vías urbanas la velocidad máxima será de cincuenta kilómetros por hora."},
	{118, "Artículo 118. Simbología. Luz roja significa detención; el giro a la derecha está permitido respetando la prelación del peatón."},
	{131, "Artículo 131. Multas. Los infractores serán sancionados con multa de salarios mínimos diarios legales vigentes."},
}

func newTestEngine(t *testing.T) *search.Engine {
	t.Helper()
	ctx := context.Background()
	const dims = 64
	embedder := embedding.NewMockEmbedder(dims)

	records := make([]*models.DocumentRecord, len(testArticles))
	texts := make([]string, len(testArticles))
	for i, a := range testArticles {
		n := a.article
		records[i] = &models.DocumentRecord{
			DocID:      i + 1,
			ArticleID:  &n,
			TextFields: map[string]string{"texto": a.text},
		}
		texts[i] = a.text
	}
	vecs, err := embedding.NewPassageEncoder(embedder, testModel, 0).EncodeBatch(ctx, texts)
	require.NoError(t, err)
	idx, err := vector.NewMemoryIndex(dims)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, vecs))

	c, err := corpus.New(records, idx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	zero := 0.0
	e, err := search.NewEngine(c, embedding.NewQueryEncoder(embedder, testModel, dims, 10),
		&config.RetrieverConfig{TopK: 2, MinScore: &zero})
	require.NoError(t, err)
	return e
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	dir := t.TempDir()
	cfg.Storage.IndexPath = filepath.Join(dir, "vectors.bin")
	cfg.Storage.MetaPath = filepath.Join(dir, "meta.jsonl")
	return NewServer(staticEngine{newTestEngine(t)}, cfg, opts...)
}

func docIDs(results []*models.SearchResult) []int {
	ids := make([]int, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	w := do(t, newTestServer(t).Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "giro a la derecha en luz roja"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), 2)
	require.NotNil(t, resp.Results[0].ArticleID)
	assert.Equal(t, 118, *resp.Results[0].ArticleID)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.ID)

	w = do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "giro a la derecha en luz roja"})
	var again models.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&again))
	assert.True(t, again.Cached)
	assert.Equal(t, docIDs(resp.Results), docIDs(again.Results))

	srv.InvalidateCache()
	w = do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "giro a la derecha en luz roja"})
	var fresh models.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fresh))
	assert.False(t, fresh.Cached)
}

func TestHandleSearch_directReference(t *testing.T) {
	w := do(t, newTestServer(t).Handler(), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "qué dice el artículo 131", "top_k": 1})
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 131, *resp.Results[0].ArticleID)
	assert.Equal(t, models.SourceDirect, resp.Results[0].Source)
	assert.Equal(t, 1.0, resp.Results[0].Score)
}

func TestHandleSearch_badRequests(t *testing.T) {
	h := newTestServer(t).Handler()
	tests := []struct {
		name string
		body interface{}
	}{
		{"invalid json", "{"},
		{"empty query", map[string]interface{}{"query": "   "}},
		{"negative top_k", map[string]interface{}{"query": "multas", "top_k": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestHandleGetArticle(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodGet, "/api/v1/articles/118", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.SearchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Contains(t, res.Text, "Luz roja")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/articles/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/articles/abc", nil).Code)
}

func TestHandleCompress(t *testing.T) {
	h := newTestServer(t).Handler()
	n := 118
	long := strings.Repeat("El giro a la derecha en luz roja está permitido. Otra oración sin relación alguna. ", 20)

	w := do(t, h, http.MethodPost, "/api/v1/compress", models.CompressRequest{
		Query:         "giro derecha luz roja",
		Articles:      []*models.SearchResult{{ArticleID: &n, Text: long}},
		MaxTotalChars: 200,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp compressResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Compressed)
	require.Len(t, resp.Articles, 1)
	assert.Less(t, resp.CharsAfter, resp.CharsBefore)

	w = do(t, h, http.MethodPost, "/api/v1/compress", map[string]interface{}{"query": "x", "articles": []interface{}{nil}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAsk(t *testing.T) {
	llm := &fakeLLM{}
	srv := newTestServer(t, WithGenerator(generator.New(llm, nil, 0)))

	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/ask", map[string]interface{}{"query": "¿puedo girar a la derecha en luz roja?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ans models.Answer
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ans))
	assert.Equal(t, "Respuesta de prueba (Artículo 118).", ans.Answer)
	assert.Contains(t, ans.ArticlesUsed, "118")
	assert.Equal(t, 1, llm.calls)
}

func TestHandleAsk_notConfigured(t *testing.T) {
	w := do(t, newTestServer(t).Handler(), http.MethodPost, "/api/v1/ask", map[string]interface{}{"query": "multas"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, WithVersion("1.2.3"))
	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, "1.2.3", st.Version)
	assert.Equal(t, 3, st.Rows)
	assert.Equal(t, 3, st.Articles)
	assert.Equal(t, 64, st.Dimensions)
	assert.Equal(t, "memory", st.IndexType)
	assert.Equal(t, 2, st.TopK)
	assert.False(t, st.GeneratorEnabled)
}

func TestHandle_noEngine(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	srv := NewServer(staticEngine{}, cfg)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "multas"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type swappableEngine struct{ p atomic.Pointer[search.Engine] }

func (s *swappableEngine) Engine() *search.Engine { return s.p.Load() }

func TestSearchCached_reloadDuringSearch(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	source := &swappableEngine{}
	oldEngine := newTestEngine(t)
	source.p.Store(oldEngine)
	srv := NewServer(source, cfg)
	q := &models.SearchQuery{Query: "multas de tránsito"}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", nil)

	// A request picks up the old engine, then the index is reloaded before it finishes.
	gen := srv.cache.generation()
	e := source.Engine()
	newEngine := newTestEngine(t)
	source.p.Store(newEngine)
	srv.InvalidateCache()

	stale, cached, err := srv.searchCached(r, e, gen, q)
	require.NoError(t, err)
	require.False(t, cached)
	require.NotEmpty(t, stale)

	fresh, cached, err := srv.searchCached(r, source.Engine(), srv.cache.generation(), q)
	require.NoError(t, err)
	assert.False(t, cached, "results from the retired engine were served after reload")
	require.NotEmpty(t, fresh)
	assert.NotSame(t, stale[0], fresh[0])
	assert.Equal(t, 1, srv.cache.len())
}

func TestResultCache_generations(t *testing.T) {
	rc := newResultCache(time.Minute, time.Minute)
	results := []*models.SearchResult{{DocID: 1}}

	gen := rc.generation()
	rc.set(gen, "q", 5, results)
	_, ok := rc.get(gen, "q", 5)
	assert.True(t, ok)
	_, ok = rc.get(gen, "q", 4)
	assert.False(t, ok)

	rc.flush()
	assert.Equal(t, gen+1, rc.generation())
	_, ok = rc.get(gen, "q", 5)
	assert.False(t, ok)

	rc.set(gen, "q", 5, results)
	assert.Equal(t, 0, rc.len())
	_, ok = rc.get(rc.generation(), "q", 5)
	assert.False(t, ok)
}
