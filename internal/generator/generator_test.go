package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/models"
)

type recordingLLM struct {
	calls    int
	messages []Message
	options  ChatOptions
	reply    *ChatResponse
	err      error
}

func (r *recordingLLM) Chat(_ context.Context, messages []Message, opts ...ChatOption) (*ChatResponse, error) {
	r.calls++
	r.messages = messages
	for _, opt := range opts {
		opt(&r.options)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.reply, nil
}

func intPtr(n int) *int { return &n }

func article(id int, full, text string) *models.SearchResult {
	return &models.SearchResult{ArticleID: intPtr(id), ArticleIDFull: full, Text: text, Score: 0.8}
}

func TestFormatContext(t *testing.T) {
	tests := []struct {
		name     string
		articles []*models.SearchResult
		want     string
	}{
		{
			name:     "empty",
			articles: nil,
			want:     "",
		},
		{
			name:     "single article uses full label",
			articles: []*models.SearchResult{article(131, "131-B", "  Multa por no portar licencia.  ")},
			want:     "ARTÍCULO 131-B\nMulta por no portar licencia.",
		},
		{
			name: "blank texts are skipped",
			articles: []*models.SearchResult{
				article(106, "", "Límites de velocidad en zonas urbanas."),
				article(107, "", "   "),
				{Text: "Sin número."},
			},
			want: "ARTÍCULO 106\nLímites de velocidad en zonas urbanas.\n\n---\n\nARTÍCULO N/A\nSin número.",
		},
		{
			name: "compressed content wins over text",
			articles: []*models.SearchResult{
				{ArticleID: intPtr(118), Text: "texto largo", Compressed: true, Content: "texto corto"},
			},
			want: "ARTÍCULO 118\ntexto corto",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatContext(tt.articles))
		})
	}
}

func TestGenerate_noArticlesSkipsModel(t *testing.T) {
	llm := &recordingLLM{}
	g := New(llm, nil, 0)

	ans, err := g.Generate(context.Background(), "¿qué es un peatón?", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, llm.calls)
	assert.Equal(t, NotFoundAnswer, ans.Answer)
	assert.Empty(t, ans.ArticlesUsed)
	assert.NotEmpty(t, ans.ID)
}

func TestGenerate_buildsPromptAndUsage(t *testing.T) {
	llm := &recordingLLM{reply: &ChatResponse{
		Content: "Máximo 50 km/h en vías urbanas (Artículo 106).",
		Model:   "qwen2.5:7b",
		Usage:   models.Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
	}}
	cfg := &config.GeneratorConfig{Model: "qwen2.5:7b", Temperature: 0.2, NumPredict: 200, NumCtx: 2048}
	g := New(llm, cfg, 8000)

	articles := []*models.SearchResult{
		article(106, "", "En vías urbanas la velocidad máxima es de 50 km/h."),
		article(107, "107-A", "En zonas escolares la velocidad máxima es de 30 km/h."),
	}
	ans, err := g.Generate(context.Background(), "límite de velocidad en ciudad", articles)
	require.NoError(t, err)

	require.Equal(t, 1, llm.calls)
	require.Len(t, llm.messages, 2)
	assert.Equal(t, RoleSystem, llm.messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, llm.messages[0].Content)
	assert.Equal(t, RoleUser, llm.messages[1].Role)
	user := llm.messages[1].Content
	assert.True(t, strings.HasPrefix(user, "ARTÍCULOS DEL CNT:\nARTÍCULO 106\n"))
	assert.Contains(t, user, "ARTÍCULO 107-A\n")
	assert.Contains(t, user, "PREGUNTA: límite de velocidad en ciudad")
	assert.True(t, strings.HasSuffix(user, "RESPUESTA:"))

	assert.Equal(t, 0.2, llm.options.Temperature)
	assert.Equal(t, 200, llm.options.NumPredict)
	assert.Equal(t, 2048, llm.options.NumCtx)

	assert.Equal(t, "Máximo 50 km/h en vías urbanas (Artículo 106).", ans.Answer)
	assert.Equal(t, []string{"106", "107-A"}, ans.ArticlesUsed)
	assert.Equal(t, 150, ans.Usage.TotalTokens)
	assert.Equal(t, "qwen2.5:7b", ans.Model)
}

func TestGenerate_compressesLongContext(t *testing.T) {
	llm := &recordingLLM{reply: &ChatResponse{Content: "ok"}}
	g := New(llm, nil, 300)

	long := strings.Repeat("El conductor debe respetar la señal de pare. ", 40)
	articles := []*models.SearchResult{article(1, "", long), article(2, "", long)}

	_, err := g.Generate(context.Background(), "señal de pare", articles)
	require.NoError(t, err)

	user := llm.messages[1].Content
	assert.Less(t, len([]rune(user)), len([]rune(long)))
	// Caller's articles are not mutated by compression.
	assert.False(t, articles[0].Compressed)
	assert.Equal(t, long, articles[0].Text)
}

func TestGenerate_modelError(t *testing.T) {
	llm := &recordingLLM{err: ErrEmptyAnswer}
	g := New(llm, nil, 0)

	_, err := g.Generate(context.Background(), "pico y placa", []*models.SearchResult{article(1, "", "texto")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyAnswer))
}

func TestWithSystemPrompt(t *testing.T) {
	llm := &recordingLLM{reply: &ChatResponse{Content: "ok"}}
	g := New(llm, nil, 0, WithSystemPrompt("Responde en una frase."))

	_, err := g.Generate(context.Background(), "q", []*models.SearchResult{article(1, "", "texto")})
	require.NoError(t, err)
	assert.Equal(t, "Responde en una frase.", llm.messages[0].Content)
}
