// Package models defines core data structures for corpus records, queries, and search results.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
)

// TextFieldNames lists every metadata key that may carry article text across pipeline versions.
var TextFieldNames = []string{"texto", "texto_completo", "content", "body", "snippet"}

// recordKeys are the metadata keys decoded into named DocumentRecord fields.
var recordKeys = map[string]struct{}{
	"doc_id": {}, "articulo": {}, "articulo_completo": {}, "titulo": {}, "titulo_numero": {},
	"titulo_nombre": {}, "capitulo_numero": {}, "capitulo_nombre": {}, "epigrafe": {},
	"longitud_caracteres": {}, "longitud_palabras": {}, "tiene_paragrafos": {},
	"tiene_modificaciones": {}, "contexto": {},
}

// DocumentRecord is one row of the metadata table (one legal article chunk).
// Row i of the metadata table corresponds to row i of the vector index.
type DocumentRecord struct {
	DocID int
	// ArticleID is nil when the row carries no integral article number.
	ArticleID     *int
	ArticleIDFull string
	Title         string
	TitleNumber   string
	TitleName     string
	ChapterNumber string
	ChapterName   string
	Heading       string
	Context       string
	CharLength    int
	WordLength    int
	HasParagraphs bool
	HasAmendments bool
	// TextFields holds the raw text variants keyed by their metadata name (texto, content, ...).
	// Any other string-valued metadata key is kept here too.
	TextFields map[string]string
}

// DedupKey returns the key used to collapse duplicate hits: the article number when
// present, otherwise the row's own doc_id.
func (r *DocumentRecord) DedupKey() string {
	if r.ArticleID != nil {
		return "a:" + strconv.Itoa(*r.ArticleID)
	}
	return "d:" + strconv.Itoa(r.DocID)
}

type documentRecordJSON struct {
	DocID         int     `json:"doc_id"`
	ArticleID     *int    `json:"articulo"`
	ArticleIDFull string  `json:"articulo_completo"`
	Title         string  `json:"titulo"`
	TitleNumber   string  `json:"titulo_numero"`
	TitleName     string  `json:"titulo_nombre"`
	ChapterNumber string  `json:"capitulo_numero"`
	ChapterName   string  `json:"capitulo_nombre"`
	Heading       string  `json:"epigrafe,omitempty"`
	CharLength    int     `json:"longitud_caracteres"`
	WordLength    int     `json:"longitud_palabras"`
	HasParagraphs bool    `json:"tiene_paragrafos"`
	HasAmendments bool    `json:"tiene_modificaciones"`
	Texto         *string `json:"texto,omitempty"`
	TextoCompleto *string `json:"texto_completo,omitempty"`
	Content       *string `json:"content,omitempty"`
	Body          *string `json:"body,omitempty"`
	Snippet       *string `json:"snippet,omitempty"`
	Context       string  `json:"contexto"`
}

// MarshalJSON writes the record with the metadata keys used by meta.jsonl.
// Non-ASCII and HTML characters are written verbatim.
func (r DocumentRecord) MarshalJSON() ([]byte, error) {
	out := documentRecordJSON{
		DocID:         r.DocID,
		ArticleID:     r.ArticleID,
		ArticleIDFull: r.ArticleIDFull,
		Title:         r.Title,
		TitleNumber:   r.TitleNumber,
		TitleName:     r.TitleName,
		ChapterNumber: r.ChapterNumber,
		ChapterName:   r.ChapterName,
		Heading:       r.Heading,
		CharLength:    r.CharLength,
		WordLength:    r.WordLength,
		HasParagraphs: r.HasParagraphs,
		HasAmendments: r.HasAmendments,
		Context:       r.Context,
	}
	field := func(name string) *string {
		if v, ok := r.TextFields[name]; ok {
			return &v
		}
		return nil
	}
	out.Texto = field("texto")
	out.TextoCompleto = field("texto_completo")
	out.Content = field("content")
	out.Body = field("body")
	out.Snippet = field("snippet")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")

	extra := extraTextFields(r.TextFields)
	if len(extra) == 0 {
		return data, nil
	}
	data = data[:len(data)-1]
	for _, name := range extra {
		buf.Reset()
		if err := enc.Encode(name); err != nil {
			return nil, err
		}
		data = append(data, ',')
		data = append(data, bytes.TrimRight(buf.Bytes(), "\n")...)
		data = append(data, ':')
		buf.Reset()
		if err := enc.Encode(r.TextFields[name]); err != nil {
			return nil, err
		}
		data = append(data, bytes.TrimRight(buf.Bytes(), "\n")...)
	}
	return append(data, '}'), nil
}

// extraTextFields returns the sorted TextFields keys that have no dedicated JSON field.
func extraTextFields(fields map[string]string) []string {
	var names []string
	for name := range fields {
		if _, ok := recordKeys[name]; ok {
			continue
		}
		if slices.Contains(TextFieldNames, name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalJSON decodes a metadata line. Numeric and string values are accepted
// interchangeably for the hierarchical fields since pipeline versions disagree on them.
func (r *DocumentRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var rec DocumentRecord
	var err error
	if rec.DocID, err = intField(raw, "doc_id"); err != nil {
		return err
	}
	rec.ArticleID = articleField(raw["articulo"])
	rec.ArticleIDFull = stringField(raw, "articulo_completo")
	rec.Title = stringField(raw, "titulo")
	rec.TitleNumber = stringField(raw, "titulo_numero")
	rec.TitleName = stringField(raw, "titulo_nombre")
	rec.ChapterNumber = stringField(raw, "capitulo_numero")
	rec.ChapterName = stringField(raw, "capitulo_nombre")
	rec.Heading = stringField(raw, "epigrafe")
	rec.Context = stringField(raw, "contexto")
	rec.CharLength, _ = intField(raw, "longitud_caracteres")
	rec.WordLength, _ = intField(raw, "longitud_palabras")
	rec.HasParagraphs = boolField(raw, "tiene_paragrafos")
	rec.HasAmendments = boolField(raw, "tiene_modificaciones")
	for name, msg := range raw {
		if _, ok := recordKeys[name]; ok {
			continue
		}
		var s string
		if json.Unmarshal(msg, &s) == nil {
			if rec.TextFields == nil {
				rec.TextFields = make(map[string]string)
			}
			rec.TextFields[name] = s
		}
	}
	*r = rec
	return nil
}

// articleField accepts only integral JSON numbers; strings, floats and null mean "no article".
func articleField(msg json.RawMessage) *int {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || msg[0] == '"' {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		return nil
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return nil
	}
	return &v
}

func intField(raw map[string]json.RawMessage, key string) (int, error) {
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		var s string
		if json.Unmarshal(msg, &s) == nil {
			if v, convErr := strconv.Atoi(s); convErr == nil {
				return v, nil
			}
		}
		return 0, fmt.Errorf("field %s: not an integer: %s", key, string(msg))
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, fmt.Errorf("field %s: not an integer: %s", key, n.String())
	}
	return v, nil
}

func stringField(raw map[string]json.RawMessage, key string) string {
	msg, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(msg, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(msg, &n) == nil {
		return n.String()
	}
	return ""
}

func boolField(raw map[string]json.RawMessage, key string) bool {
	var b bool
	if msg, ok := raw[key]; ok {
		_ = json.Unmarshal(msg, &b)
	}
	return b
}
