package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleChunks = `{
  "metadata": {"total_articulos": 3},
  "articulos": [
    {
      "article_number": 118,
      "article_number_full": "118",
      "title": "Simbología",
      "full_text": "Artículo 118. Simbología\n\nLuz roja: detención. Se permite el giro a la derecha respetando al peatón.",
      "metadata": {
        "titulo_numero": "III",
        "titulo_nombre": "NORMAS DE  COMPORTAMIENTO",
        "capitulo_numero": "VIII",
        "capitulo_nombre": "Señales luminosas",
        "longitud_caracteres": 96,
        "longitud_palabras": 15,
        "tiene_paragrafos": false,
        "tiene_modificaciones": false
      }
    },
    {
      "article_number": 119,
      "article_number_full": "119",
      "title": "",
      "full_text": "   ",
      "metadata": {}
    },
    {
      "article_number": 131,
      "article_number_full": "131-B",
      "title": "Multas",
      "full_text": "Artículo 131-B. Multas\n\nSerá sancionado con multa de treinta salarios mínimos.",
      "metadata": {"titulo_numero": 4, "titulo_nombre": "SANCIONES", "tiene_paragrafos": true}
    }
  ]
}`

func writeChunks(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "chunks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadChunks(t *testing.T) {
	path := writeChunks(t, t.TempDir(), sampleChunks)
	chunks, err := LoadChunks(path)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "131-B", chunks[2].FullNumber())
	assert.Equal(t, "4", string(chunks[2].Metadata.TitleNumber), "numeric titulo_numero should load as string")
}

func TestLoadChunks_errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadChunks(filepath.Join(dir, "missing.json"))
	assert.Error(t, err, "missing file")
	_, err = LoadChunks(writeChunks(t, dir, `{"articles": []}`))
	assert.Error(t, err, "articulos absent")
	_, err = LoadChunks(writeChunks(t, dir, `{"articulos": [`))
	assert.Error(t, err, "malformed json")
}

func TestContextLine(t *testing.T) {
	n := 118
	tests := []struct {
		name  string
		chunk Chunk
		want  string
	}{
		{
			name: "full hierarchy",
			chunk: Chunk{
				ArticleNumber: &n, ArticleNumberFull: "118", Title: "Simbología",
				Metadata: ChunkMetadata{TitleNumber: "III", TitleName: "NORMAS DE\nCOMPORTAMIENTO", ChapterNumber: "VIII", ChapterName: "Señales luminosas"},
			},
			want: "Título III: NORMAS DE COMPORTAMIENTO | Capítulo VIII: Señales luminosas | Artículo 118 | Simbología",
		},
		{
			name:  "chapter without name is omitted",
			chunk: Chunk{ArticleNumber: &n, Metadata: ChunkMetadata{ChapterNumber: "II"}},
			want:  "Artículo 118",
		},
		{
			name:  "full number preferred",
			chunk: Chunk{ArticleNumber: &n, ArticleNumberFull: "118-A", Title: " Giros "},
			want:  "Artículo 118-A | Giros",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chunk.ContextLine())
		})
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"  a  b  ", "a b"},
		{"línea\n\tdos", "línea dos"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Preprocess(tt.in), "Preprocess(%q)", tt.in)
	}
}
