package corpus

import "github.com/hyperjump/cntsearch/internal/models"

// TextResolver picks the article text out of a record's text-field variants.
type TextResolver struct {
	priority []string
}

// NewTextResolver returns a resolver that tries fields in the given order. An empty
// priority falls back to models.TextFieldNames.
func NewTextResolver(priority []string) *TextResolver {
	if len(priority) == 0 {
		priority = models.TextFieldNames
	}
	p := make([]string, len(priority))
	copy(p, priority)
	return &TextResolver{priority: p}
}

// Priority returns a copy of the field order.
func (r *TextResolver) Priority() []string {
	out := make([]string, len(r.priority))
	copy(out, r.priority)
	return out
}

// Resolve returns the first non-empty text field, or "" when none is set.
func (r *TextResolver) Resolve(rec *models.DocumentRecord) string {
	if rec == nil {
		return ""
	}
	for _, name := range r.priority {
		if t := rec.TextFields[name]; t != "" {
			return t
		}
	}
	return ""
}
