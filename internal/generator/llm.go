// Package generator turns retrieved articles into a short grounded answer using a chat model.
package generator

import (
	"context"
	"errors"

	"github.com/hyperjump/cntsearch/internal/models"
)

// ErrEmptyAnswer is returned when the model replies with no content.
var ErrEmptyAnswer = errors.New("language model returned an empty answer")

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions are the sampling settings sent with a chat request.
type ChatOptions struct {
	Temperature float64
	NumPredict  int
	NumCtx      int
}

// ChatOption configures a single chat call.
type ChatOption func(*ChatOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(o *ChatOptions) { o.Temperature = t }
}

// WithNumPredict caps the number of generated tokens.
func WithNumPredict(n int) ChatOption {
	return func(o *ChatOptions) { o.NumPredict = n }
}

// WithNumCtx sets the model context window.
func WithNumCtx(n int) ChatOption {
	return func(o *ChatOptions) { o.NumCtx = n }
}

// ChatResponse is the model reply and its token accounting.
type ChatResponse struct {
	Content string
	Model   string
	Usage   models.Usage
}

// LLM is a chat-completion backend.
type LLM interface {
	Chat(ctx context.Context, messages []Message, opts ...ChatOption) (*ChatResponse, error)
}
