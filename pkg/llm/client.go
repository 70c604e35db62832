package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrRateLimited is returned when the inference service rejects a request
// because of rate limiting. The next scheduled cycle retries; callers never
// retry synchronously.
var ErrRateLimited = errors.New("llm: rate limited")

// ErrInvalidResponse is returned when the inference service answers with
// something that cannot be decoded.
var ErrInvalidResponse = errors.New("llm: invalid response")

// Client is the interface for inference interactions
type Client interface {
	// Complete sends a prompt and returns the raw text completion.
	// Temperature is passed through to the model.
	Complete(ctx context.Context, req CompleteRequest) (string, error)

	// Embed returns a fixed-length embedding vector for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// Health checks if the inference service is available
	Health(ctx context.Context) error
}

// CompleteRequest represents a completion request
type CompleteRequest struct {
	Prompt      string
	System      string
	Temperature float64
}

// generateRequest is the Ollama /api/generate wire format
type generateRequest struct {
	Model     string                 `json:"model"`
	Prompt    string                 `json:"prompt"`
	System    string                 `json:"system,omitempty"`
	Format    string                 `json:"format,omitempty"`
	Stream    bool                   `json:"stream"`
	Options   map[string]interface{} `json:"options,omitempty"`
	KeepAlive string                 `json:"keep_alive,omitempty"`
}

// generateResponse is the Ollama /api/generate response
type generateResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Response      string    `json:"response"`
	Done          bool      `json:"done"`
	TotalDuration int64     `json:"total_duration"`
	EvalCount     int       `json:"eval_count"`
}

// embedRequest is the Ollama /api/embeddings wire format
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama /api/embeddings response
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ollamaClient implements Client for the Ollama API
type ollamaClient struct {
	baseURL    string
	model      string
	embedModel string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama inference client
func NewOllamaClient(baseURL, model, embedModel string, logger *slog.Logger) Client {
	return &ollamaClient{
		baseURL:    baseURL,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Generous timeout for LLM
		},
		logger: logger,
	}
}

// Complete sends a prompt to Ollama and returns the raw response text
func (c *ollamaClient) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	startTime := time.Now()

	if req.Prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	genReq := generateRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		System: req.System,
		Format: "json",
		Stream: false,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"top_p":       0.9,
			"top_k":       40,
		},
		KeepAlive: "5m",
	}

	c.logger.Debug("LLM request",
		"model", c.model,
		"prompt_length", len(req.Prompt),
		"temperature", req.Temperature)

	body, err := c.post(ctx, "/api/generate", genReq)
	if err != nil {
		return "", err
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	duration := time.Since(startTime)

	c.logger.Info("LLM response received",
		"model", c.model,
		"duration_ms", duration.Milliseconds(),
		"eval_count", genResp.EvalCount,
		"response_length", len(genResp.Response))

	return genResp.Response, nil
}

// Embed returns the embedding vector for the given text
func (c *ollamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	body, err := c.post(ctx, "/api/embeddings", embedRequest{
		Model:  c.embedModel,
		Prompt: text,
	})
	if err != nil {
		return nil, err
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrInvalidResponse)
	}

	return embResp.Embedding, nil
}

// post sends a JSON request and returns the raw response body
func (c *ollamaClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LLM returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// Health checks if Ollama is available
func (c *ollamaClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
