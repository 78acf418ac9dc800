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
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAITimeout        = 60 * time.Second
)

// OpenAIDispatcher sends chat completions to an OpenAI-compatible endpoint.
type OpenAIDispatcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIDispatcher creates a dispatcher for the given API key. An empty
// baseURL falls back to the public OpenAI endpoint.
func NewOpenAIDispatcher(apiKey, baseURL string) (*OpenAIDispatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for OpenAI dispatcher")
	}
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	client := &http.Client{
		Timeout: openAITimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &OpenAIDispatcher{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}, nil
}

// Dispatch sends one non-streaming chat completion request.
func (d *OpenAIDispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	payload := map[string]any{
		"model":    req.ModelID,
		"messages": buildMessages(req),
		"stream":   false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := d.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("response contains no choices")
	}

	return &Result{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// ValidateCredentials makes a cheap API call to check the key.
func (d *OpenAIDispatcher) ValidateCredentials(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("validation failed: status=%d, body=%s", resp.StatusCode, truncate(body, 256))
	}
	return nil
}

// Close releases idle connections.
func (d *OpenAIDispatcher) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func buildMessages(req Request) []map[string]string {
	messages := make([]map[string]string, 0, 2)
	if req.Document != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": "Attached document:\n" + req.Document,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.Prompt,
	})
	return messages
}
