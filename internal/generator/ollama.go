package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaChatEndpoint = "/api/chat"

// OllamaLLM talks to a local Ollama server through /api/chat.
type OllamaLLM struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewOllamaLLM creates a chat client for model served at baseURL.
func NewOllamaLLM(baseURL, model string, timeout time.Duration) *OllamaLLM {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaLLM{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Chat sends a non-streaming chat request and returns the assistant reply.
func (o *OllamaLLM) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (*ChatResponse, error) {
	var co ChatOptions
	for _, opt := range opts {
		opt(&co)
	}

	payload, err := json.Marshal(ollamaChatRequest{
		Model:    o.Model,
		Messages: messages,
		Stream:   false,
		Options: &ollamaOptions{
			Temperature: co.Temperature,
			NumPredict:  co.NumPredict,
			NumCtx:      co.NumCtx,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+ollamaChatEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama chat error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	content := strings.TrimSpace(out.Message.Content)
	if content == "" {
		return nil, ErrEmptyAnswer
	}

	model := out.Model
	if model == "" {
		model = o.Model
	}
	res := &ChatResponse{Content: content, Model: model}
	res.Usage.PromptTokens = out.PromptEvalCount
	res.Usage.CompletionTokens = out.EvalCount
	res.Usage.TotalTokens = out.PromptEvalCount + out.EvalCount
	return res, nil
}
