package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/cntsearch/internal/config"
	"github.com/hyperjump/cntsearch/internal/corpus"
	"github.com/hyperjump/cntsearch/internal/embedding"
	"github.com/hyperjump/cntsearch/internal/keyword"
	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/vector"
)

func BenchmarkExtractArticleNumbers(b *testing.B) {
	q := "¿Qué relación hay entre el artículo 131, el art. 2 y el Artículo 55 del código?"
	for i := 0; i < b.N; i++ {
		_ = ExtractArticleNumbers(q)
	}
}

func BenchmarkEngineSearch(b *testing.B) {
	const (
		rows = 1000
		dims = 64
	)
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(dims)
	idx, _ := vector.NewMemoryIndex(dims)
	records := make([]*models.DocumentRecord, rows)
	vecs := make([][]float32, rows)
	for i := range records {
		n := i + 1
		text := fmt.Sprintf("Artículo %d. Disposición sobre tránsito y vehículos número %d.", n, n)
		records[i] = &models.DocumentRecord{DocID: n, ArticleID: &n, TextFields: map[string]string{"texto": text}}
		vecs[i], _ = emb.Embed(ctx, "passage: "+text)
	}
	_ = idx.Add(ctx, vecs)
	c, err := corpus.New(records, idx, nil)
	if err != nil {
		b.Fatal(err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	enc := embedding.NewQueryEncoder(emb, "intfloat/multilingual-e5-base", dims, 0)
	e, err := NewEngine(c, enc, &cfg.Retriever, WithLexicalScorer(keyword.NewBM25()))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Search(ctx, "límite de velocidad artículo 106", 5)
	}
}
