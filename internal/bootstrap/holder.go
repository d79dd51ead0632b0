package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/search"
)

// DefaultRetireDelay is how long a replaced engine keeps its corpus open so that
// in-flight searches can finish.
const DefaultRetireDelay = 30 * time.Second

// BuildFunc constructs a fresh engine, typically from the files on disk.
type BuildFunc func(ctx context.Context) (*search.Engine, error)

// Holder publishes the current engine and swaps it atomically on reload.
type Holder struct {
	current     atomic.Pointer[search.Engine]
	build       BuildFunc
	mu          sync.Mutex
	onReload    []func()
	retireDelay time.Duration
	logger      *zap.Logger
}

// NewHolder wraps an initial engine. build is used by Reload.
func NewHolder(initial *search.Engine, build BuildFunc, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Holder{build: build, retireDelay: DefaultRetireDelay, logger: logger}
	h.current.Store(initial)
	return h
}

// Engine returns the engine serving requests.
func (h *Holder) Engine() *search.Engine {
	return h.current.Load()
}

// OnReload registers fn to run after every successful swap.
func (h *Holder) OnReload(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReload = append(h.onReload, fn)
}

// Reload builds a new engine and swaps it in. On failure the current engine keeps
// serving and the error is returned.
func (h *Holder) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	next, err := h.build(ctx)
	if err != nil {
		h.logger.Error("Reload failed; keeping current index", zap.Error(err))
		return err
	}
	old := h.current.Swap(next)
	h.logger.Info("Index reloaded",
		zap.Int("rows", next.Corpus().Size()),
		zap.Duration("duration", time.Since(start)))

	for _, fn := range h.onReload {
		fn()
	}
	if old != nil && old != next {
		h.retire(old)
	}
	return nil
}

func (h *Holder) retire(old *search.Engine) {
	if h.retireDelay <= 0 {
		_ = old.Corpus().Close()
		return
	}
	time.AfterFunc(h.retireDelay, func() {
		if err := old.Corpus().Close(); err != nil {
			h.logger.Debug("close retired corpus failed", zap.Error(err))
		}
	})
}

// Close releases the current engine's corpus.
func (h *Holder) Close() error {
	if e := h.current.Load(); e != nil {
		return e.Corpus().Close()
	}
	return nil
}
