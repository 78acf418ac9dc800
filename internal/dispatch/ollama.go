package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaTimeout        = 120 * time.Second
)

// OllamaDispatcher sends chat requests to a local Ollama server. Local models
// run slower than hosted ones, hence the longer timeout.
type OllamaDispatcher struct {
	baseURL string
	client  *http.Client
}

// NewOllamaDispatcher creates a dispatcher for the given base URL. An empty
// baseURL falls back to the default local endpoint.
func NewOllamaDispatcher(baseURL string) *OllamaDispatcher {
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	return &OllamaDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: ollamaTimeout},
	}
}

// Dispatch sends one non-streaming chat request.
func (d *OllamaDispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	payload := map[string]any{
		"model":    req.ModelID,
		"messages": buildMessages(req),
		"stream":   false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := d.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &Result{
		Text:         parsed.Message.Content,
		InputTokens:  parsed.PromptEvalCount,
		OutputTokens: parsed.EvalCount,
	}, nil
}

// Ping checks that the Ollama server is reachable.
func (d *OllamaDispatcher) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}
