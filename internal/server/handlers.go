package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/generator"
	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/search"
	"github.com/hyperjump/cntsearch/internal/storage"
	"github.com/hyperjump/cntsearch/pkg/utils"
)

func (s *Server) engine(w http.ResponseWriter) *search.Engine {
	e := s.engines.Engine()
	if e == nil {
		s.respondError(w, http.StatusServiceUnavailable, "index not loaded")
	}
	return e
}

// searchCached runs a search, serving repeated (query, top_k) pairs from the cache.
// gen is the cache generation read before e was taken from the engine source.
func (s *Server) searchCached(r *http.Request, e *search.Engine, gen uint64, q *models.SearchQuery) ([]*models.SearchResult, bool, error) {
	k := q.Limit()
	if k < 0 {
		k = e.DefaultTopK()
	}
	if results, ok := s.cache.get(gen, q.Query, k); ok {
		return results, true, nil
	}
	results, err := e.Search(r.Context(), q.Query, k)
	if err != nil {
		return nil, false, err
	}
	s.cache.set(gen, q.Query, k, results)
	return results, false, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	gen := s.cache.generation()
	e := s.engine(w)
	if e == nil {
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.Limit()))

	start := time.Now()
	results, cached, err := s.searchCached(r, e, gen, &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		ID:        uuid.New().String(),
		Query:     query.Query,
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Cached:    cached,
	})
}

type compressResponse struct {
	Articles    []*models.SearchResult `json:"articles"`
	CharsBefore int                    `json:"chars_before"`
	CharsAfter  int                    `json:"chars_after"`
	Compressed  bool                   `json:"compressed"`
}

func contextChars(articles []*models.SearchResult) int {
	n := 0
	for _, a := range articles {
		n += utils.RuneLen(a.ContextText())
	}
	return n
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req models.CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	budget := req.MaxTotalChars
	if budget == 0 {
		budget = s.config.Compressor.MaxContextChars
	}
	out := s.compressor.CompressContext(req.Articles, req.Query, budget)
	if out == nil {
		out = []*models.SearchResult{}
	}
	resp := compressResponse{
		Articles:    out,
		CharsBefore: contextChars(req.Articles),
		CharsAfter:  contextChars(out),
	}
	for _, a := range out {
		if a.Compressed {
			resp.Compressed = true
			break
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.generator == nil {
		s.respondError(w, http.StatusServiceUnavailable, "answer generation is not configured")
		return
	}
	gen := s.cache.generation()
	e := s.engine(w)
	if e == nil {
		return
	}
	s.logger.Debug("ask request", zap.String("query", query.Query))

	start := time.Now()
	results, _, err := s.searchCached(r, e, gen, &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	answer, err := s.generator.Generate(r.Context(), query.Query, results)
	if err != nil {
		s.logger.Error("answer generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	answer.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n <= 0 {
		s.respondError(w, http.StatusBadRequest, "article number must be a positive integer")
		return
	}
	e := s.engine(w)
	if e == nil {
		return
	}
	article, ok := e.Article(n)
	if !ok {
		s.respondError(w, http.StatusNotFound, "article not found")
		return
	}
	s.respondJSON(w, http.StatusOK, article)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse describes the loaded corpus and the enabled pipeline stages.
type StatusResponse struct {
	Status              string  `json:"status"`
	Version             string  `json:"version,omitempty"`
	UptimeSeconds       int64   `json:"uptime_seconds"`
	Rows                int     `json:"rows"`
	Articles            int     `json:"articles"`
	Dimensions          int     `json:"dimensions"`
	IndexType           string  `json:"index_type"`
	MetadataBackend     string  `json:"metadata_backend"`
	EmbeddingModel      string  `json:"embedding_model"`
	TopK                int     `json:"top_k"`
	MinScore            float64 `json:"min_score"`
	LexicalEnabled      bool    `json:"lexical_enabled"`
	LexicalBackend      string  `json:"lexical_backend,omitempty"`
	CrossEncoderEnabled bool    `json:"cross_encoder_enabled"`
	GeneratorEnabled    bool    `json:"generator_enabled"`
	GeneratorModel      string  `json:"generator_model,omitempty"`
	CachedQueries       int     `json:"cached_queries"`
	DiskUsageBytes      int64   `json:"disk_usage_bytes,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	e := s.engine(w)
	if e == nil {
		return
	}
	resp := NewStatus(e, s.config, s.generator)
	resp.Version = s.version
	resp.UptimeSeconds = int64(time.Since(s.started).Seconds())
	resp.CachedQueries = s.cache.len()
	s.respondJSON(w, http.StatusOK, resp)
}

// NewStatus describes the loaded corpus and the enabled pipeline stages. gen may be nil.
func NewStatus(e *search.Engine, cfg *config.Config, gen *generator.Generator) StatusResponse {
	c := e.Corpus()
	resp := StatusResponse{
		Status:              "ok",
		Rows:                c.Size(),
		Articles:            len(c.Articles()),
		Dimensions:          c.Dimensions(),
		IndexType:           c.Index().Type(),
		MetadataBackend:     cfg.Storage.MetadataBackend,
		EmbeddingModel:      cfg.Embedding.ModelName,
		TopK:                e.DefaultTopK(),
		MinScore:            e.MinScore(),
		LexicalEnabled:      e.LexicalEnabled(),
		LexicalBackend:      e.LexicalBackend(),
		CrossEncoderEnabled: e.CrossEncoderEnabled(),
		GeneratorEnabled:    gen != nil,
	}
	if gen != nil {
		resp.GeneratorModel = gen.Model()
	}
	paths := []string{cfg.Storage.IndexPath, cfg.Storage.MetaPath}
	if cfg.Storage.MetadataBackend == config.MetadataSQLite {
		paths = append(paths, cfg.Storage.DatabasePath)
	}
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		resp.DiskUsageBytes = n
	}
	return resp
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		s.logger.Debug("write response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
