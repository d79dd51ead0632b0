// Package cli provides output helpers for the cntsearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/cntsearch/internal/models"
	"github.com/hyperjump/cntsearch/internal/server"
	"github.com/hyperjump/cntsearch/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// previewRunes is how much article text the text format shows per result.
const previewRunes = 300

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputCompact:
		return OutputCompact, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for i, r := range response.Results {
			fmt.Fprintf(w, "%d\t%s\t%.4f\t%s\t%s\n", i+1, r.ArticleLabel(), r.Score, r.Source, TruncateWords(r.Title, 12))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	cached := ""
	if response.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(w, "\nFound %d articles in %dms%s\n\n", len(response.Results), response.QueryTime, cached)
	for i, r := range response.Results {
		writeOneResult(w, i+1, r)
	}
}

func writeOneResult(w io.Writer, rank int, r *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%s] #%d | Artículo %s | Score: %.4f (semantic: %.4f)\n",
		r.Source, rank, r.ArticleLabel(), r.Score, r.SemanticScore)
	if r.Title != "" {
		fmt.Fprintf(w, "%s\n", r.Title)
	}
	if r.TitleName != "" || r.ChapterName != "" {
		fmt.Fprintf(w, "%s / %s\n", r.TitleName, r.ChapterName)
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(r.ContextText(), previewRunes))
	fmt.Fprintln(w)
}

// WriteAnswer writes a generated answer and its supporting articles.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, answer)
	case OutputCompact:
		fmt.Fprintf(w, "%s\t[%s]\n", strings.ReplaceAll(answer.Answer, "\n", " "), strings.Join(answer.ArticlesUsed, ","))
		return nil
	default:
		fmt.Fprintf(w, "\n%s\n\n", answer.Answer)
		if len(answer.ArticlesUsed) > 0 {
			fmt.Fprintf(w, "Artículos: %s\n", strings.Join(answer.ArticlesUsed, ", "))
		}
		if answer.Model != "" {
			fmt.Fprintf(w, "Model: %s | tokens: %d | %dms\n", answer.Model, answer.Usage.TotalTokens, answer.QueryTime)
		}
		return nil
	}
}

// WriteStatus writes index and pipeline status.
func WriteStatus(w io.Writer, status *server.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "rows:               %d   # vectors and metadata rows\n", status.Rows)
	fmt.Fprintf(w, "articles:           %d   # distinct article numbers\n", status.Articles)
	if status.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # index + metadata on disk\n", status.DiskUsageBytes)
	}
	if status.Version != "" {
		fmt.Fprintf(w, "version:            %s\n", status.Version)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "index_type:         %s\n", status.IndexType)
	fmt.Fprintf(w, "dimensions:         %d\n", status.Dimensions)
	fmt.Fprintf(w, "metadata_backend:   %s\n", status.MetadataBackend)
	fmt.Fprintf(w, "embedding_model:    %s\n", status.EmbeddingModel)
	fmt.Fprintf(w, "top_k:              %d\n", status.TopK)
	fmt.Fprintf(w, "min_score:          %.2f\n", status.MinScore)
	if status.LexicalEnabled {
		fmt.Fprintf(w, "lexical:            %s\n", status.LexicalBackend)
	} else {
		fmt.Fprintf(w, "lexical:            disabled\n")
	}
	fmt.Fprintf(w, "cross_encoder:      %t\n", status.CrossEncoderEnabled)
	if status.GeneratorEnabled {
		fmt.Fprintf(w, "generator:          %s\n", status.GeneratorModel)
	} else {
		fmt.Fprintf(w, "generator:          disabled\n")
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
