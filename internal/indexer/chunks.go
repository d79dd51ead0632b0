package indexer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ChunkFile is the structured output of the article chunker: {"articulos": [...]}.
type ChunkFile struct {
	Articles []*Chunk `json:"articulos"`
}

// Chunk is one legal article as produced by the chunker.
type Chunk struct {
	ArticleNumber     *int          `json:"article_number"`
	ArticleNumberFull looseString   `json:"article_number_full"`
	Title             string        `json:"title"`
	FullText          string        `json:"full_text"`
	Metadata          ChunkMetadata `json:"metadata"`
}

// ChunkMetadata holds the hierarchical position and shape of an article.
type ChunkMetadata struct {
	TitleNumber   looseString `json:"titulo_numero"`
	TitleName     string      `json:"titulo_nombre"`
	ChapterNumber looseString `json:"capitulo_numero"`
	ChapterName   string      `json:"capitulo_nombre"`
	CharLength    int         `json:"longitud_caracteres"`
	WordLength    int         `json:"longitud_palabras"`
	HasParagraphs bool        `json:"tiene_paragrafos"`
	HasAmendments bool        `json:"tiene_modificaciones"`
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*s = looseString(n.String())
	return nil
}

// LoadChunks reads a chunk file from path.
func LoadChunks(path string) ([]*Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	var file ChunkFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse chunks: %w", err)
	}
	if file.Articles == nil {
		return nil, fmt.Errorf("parse chunks: missing \"articulos\" array")
	}
	return file.Articles, nil
}

// FullNumber returns article_number_full, falling back to article_number.
func (c *Chunk) FullNumber() string {
	if c.ArticleNumberFull != "" {
		return string(c.ArticleNumberFull)
	}
	if c.ArticleNumber != nil {
		return fmt.Sprintf("%d", *c.ArticleNumber)
	}
	return ""
}

// ContextLine builds the hierarchical breadcrumb
// "Título N: name | Capítulo N: name | Artículo X | title", omitting missing parts.
func (c *Chunk) ContextLine() string {
	var parts []string
	md := c.Metadata
	if name := Preprocess(md.TitleName); md.TitleNumber != "" && name != "" {
		parts = append(parts, fmt.Sprintf("Título %s: %s", md.TitleNumber, name))
	}
	if name := Preprocess(md.ChapterName); md.ChapterNumber != "" && name != "" {
		parts = append(parts, fmt.Sprintf("Capítulo %s: %s", md.ChapterNumber, name))
	}
	parts = append(parts, "Artículo "+c.FullNumber())
	if t := Preprocess(c.Title); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " | ")
}
