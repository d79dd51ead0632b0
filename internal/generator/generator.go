package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/cntsearch/internal/compress"
	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/models"
)

const contextSeparator = "\n\n---\n\n"

// Generator answers a question from retrieved articles.
type Generator struct {
	llm             LLM
	compressor      *compress.Compressor
	model           string
	systemPrompt    string
	temperature     float64
	numPredict      int
	numCtx          int
	maxContextChars int
	logger          *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithCompressor replaces the default context compressor.
func WithCompressor(c *compress.Compressor) Option {
	return func(g *Generator) {
		if c != nil {
			g.compressor = c
		}
	}
}

// WithSystemPrompt overrides DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(g *Generator) {
		if prompt != "" {
			g.systemPrompt = prompt
		}
	}
}

// New creates a generator over llm. cfg may be nil; zero fields fall back to defaults.
func New(llm LLM, cfg *config.GeneratorConfig, maxContextChars int, opts ...Option) *Generator {
	g := &Generator{
		llm:             llm,
		compressor:      compress.New(),
		model:           config.DefaultGeneratorModel,
		systemPrompt:    DefaultSystemPrompt,
		temperature:     config.DefaultTemperature,
		numPredict:      config.DefaultNumPredict,
		numCtx:          config.DefaultNumCtx,
		maxContextChars: maxContextChars,
		logger:          zap.NewNop(),
	}
	if cfg != nil {
		if cfg.Model != "" {
			g.model = cfg.Model
		}
		g.temperature = cfg.Temperature
		if cfg.NumPredict > 0 {
			g.numPredict = cfg.NumPredict
		}
		if cfg.NumCtx > 0 {
			g.numCtx = cfg.NumCtx
		}
	}
	if g.maxContextChars <= 0 {
		g.maxContextChars = compress.DefaultMaxContextChars
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the chat model name.
func (g *Generator) Model() string { return g.model }

// FormatContext renders articles as "ARTÍCULO <label>\n<text>" blocks separated by
// "\n\n---\n\n". Articles with blank text are skipped.
func FormatContext(articles []*models.SearchResult) string {
	parts := make([]string, 0, len(articles))
	for _, a := range articles {
		if a == nil {
			continue
		}
		text := strings.TrimSpace(a.ContextText())
		if text == "" {
			continue
		}
		parts = append(parts, "ARTÍCULO "+a.ArticleLabel()+"\n"+text)
	}
	return strings.Join(parts, contextSeparator)
}

// Messages builds the system and user turns for query over the already compressed articles.
func (g *Generator) Messages(query string, articles []*models.SearchResult) []Message {
	return []Message{
		{Role: RoleSystem, Content: g.systemPrompt},
		{Role: RoleUser, Content: UserPrompt(FormatContext(articles), query)},
	}
}

// Generate compresses the articles to the context budget and asks the model for an answer.
// With no articles it returns NotFoundAnswer without calling the model.
func (g *Generator) Generate(ctx context.Context, query string, articles []*models.SearchResult) (*models.Answer, error) {
	start := time.Now()
	answer := &models.Answer{
		ID:           uuid.New().String(),
		Query:        query,
		Model:        g.model,
		ArticlesUsed: make([]string, 0, len(articles)),
		Articles:     articles,
	}
	for _, a := range articles {
		answer.ArticlesUsed = append(answer.ArticlesUsed, a.ArticleLabel())
	}

	if len(articles) == 0 {
		answer.Answer = NotFoundAnswer
		answer.QueryTime = time.Since(start).Milliseconds()
		return answer, nil
	}

	compressed := g.compressor.CompressContext(articles, query, g.maxContextChars)
	resp, err := g.llm.Chat(ctx, g.Messages(query, compressed),
		WithTemperature(g.temperature),
		WithNumPredict(g.numPredict),
		WithNumCtx(g.numCtx),
	)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answer.Answer = resp.Content
	if resp.Model != "" {
		answer.Model = resp.Model
	}
	answer.Usage = resp.Usage
	answer.QueryTime = time.Since(start).Milliseconds()

	g.logger.Debug("Answer generated",
		zap.String("query", query),
		zap.Int("articles", len(articles)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("duration_ms", answer.QueryTime))
	return answer, nil
}
