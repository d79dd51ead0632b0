package server

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hyperjump/cntsearch/internal/models"
)

// resultCache keeps recent search results keyed by (generation, top_k, query).
// Cached slices are shared between responses and must not be mutated.
// flush advances the generation, so a search that started before a flush stores its
// results under a key no later request reads.
type resultCache struct {
	c   *cache.Cache
	gen atomic.Uint64
}

func newResultCache(ttl, cleanup time.Duration) *resultCache {
	return &resultCache{c: cache.New(ttl, cleanup)}
}

func cacheKey(gen uint64, query string, topK int) string {
	return fmt.Sprintf("%d\x00%d\x00%s", gen, topK, query)
}

// generation must be read before the engine a request will search.
func (rc *resultCache) generation() uint64 {
	return rc.gen.Load()
}

func (rc *resultCache) get(gen uint64, query string, topK int) ([]*models.SearchResult, bool) {
	if x, found := rc.c.Get(cacheKey(gen, query, topK)); found {
		return x.([]*models.SearchResult), true
	}
	return nil, false
}

func (rc *resultCache) set(gen uint64, query string, topK int, results []*models.SearchResult) {
	if gen != rc.gen.Load() {
		return
	}
	rc.c.Set(cacheKey(gen, query, topK), results, cache.DefaultExpiration)
}

func (rc *resultCache) flush() {
	rc.gen.Add(1)
	rc.c.Flush()
}

func (rc *resultCache) len() int {
	return rc.c.ItemCount()
}
