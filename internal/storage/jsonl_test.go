package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "meta.jsonl")
	store := NewJSONLStore(path)
	ctx := context.Background()

	require.NoError(t, store.WriteRecords(ctx, sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"texto_completo":"ARTÍCULO 2. Para la aplicación..."`)

	got, err := store.Records(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 118, *got[2].ArticleID)
	assert.Equal(t, "118-1", got[2].ArticleIDFull)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestJSONLStore_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.jsonl")
	content := "{\"doc_id\": 1, \"articulo\": 1}\n\n   \n{\"doc_id\": 2, \"articulo\": 2}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := NewJSONLStore(path).Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestJSONLStore_MalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"doc_id\": 1}\n{broken\n"), 0644))

	_, err := NewJSONLStore(path).Records(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestJSONLStore_MissingFile(t *testing.T) {
	_, err := NewJSONLStore(filepath.Join(t.TempDir(), "none.jsonl")).Records(context.Background())
	assert.Error(t, err)
}
