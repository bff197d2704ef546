package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// openAICompatClient is the shared HTTP client for every provider: all
// chat/embedding calls in this pool speak the OpenAI-compatible wire
// format (see SPEC_FULL.md section 6, "Wire protocols").
type openAICompatClient struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	client         *http.Client
}

func newOpenAICompatClient(baseURL, apiKey string, timeoutSeconds int, embeddingModel string) *openAICompatClient {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 120
	}
	return &openAICompatClient{
		baseURL:        baseURL,
		apiKey:         apiKey,
		embeddingModel: embeddingModel,
		client:         &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *openAICompatClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body := chatCompletionRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	respBody, err := doPostWithRetry(ctx, c.client, c.baseURL+"/v1/chat/completions", c.apiKey, body)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in completion response", errTransient)
	}
	return &CompletionResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *openAICompatClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if model == "" {
		model = c.embeddingModel
	}
	body := embeddingRequest{Model: model, Input: texts}
	respBody, err := doPostWithRetry(ctx, c.client, c.baseURL+"/v1/embeddings", c.apiKey, body)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}

// errTransient marks errors doPostWithRetry considers retryable so callers
// one level up (the orchestrator, embedstrategy) can classify them via
// errors.Is against their own sentinel after wrapping.
var errTransient = fmt.Errorf("transient")

// IsTransient reports whether err originated from a retryable failure path
// in this client (I/O, timeout, 5xx). Exported for the orchestrator's retry
// classification.
func IsTransient(err error) bool {
	return err != nil && errorsIs(err, errTransient)
}

func errorsIs(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// maxAttempts and retryDelay implement the retry semantics from section
// 4.1/5: up to 3 total attempts, fixed 120s inter-attempt delay, transient
// failures only (I/O errors, timeouts, any 5xx, and 429 Too Many Requests).
// Authentication and other 4xx errors are terminal on the first try.
const (
	maxAttempts = 3
	retryDelay  = 120 * time.Second
)

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func doPostWithRetry(ctx context.Context, client *http.Client, url, apiKey string, body interface{}) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := retryDelay
			if ra := retryAfterHint(lastErr); ra > delay {
				delay = ra
			}
			slog.Warn("pool: retrying request", "url", url, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: request to %s: %v", errTransient, url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: reading response body: %v", errTransient, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		if !retryableStatusCode(resp.StatusCode) {
			// Authentication/4xx errors are terminal, not wrapped as transient.
			return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, respBody)
		}
		lastErr = &retryableHTTPError{status: resp.StatusCode, body: string(respBody), retryAfter: resp.Header.Get("Retry-After")}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

type retryableHTTPError struct {
	status     int
	body       string
	retryAfter string
}

func (e *retryableHTTPError) Error() string {
	return fmt.Sprintf("%v: provider returned %d: %s", errTransient, e.status, e.body)
}

func (e *retryableHTTPError) Unwrap() error { return errTransient }

func retryAfterHint(err error) time.Duration {
	rerr, ok := err.(*retryableHTTPError)
	if !ok || rerr.retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(rerr.retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
