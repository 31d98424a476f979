package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pro804501/evaluateai-ai-backend/internal/config"
	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// Common errors
var (
	// ErrUnavailable covers transport failures, timeouts and non-200
	// responses from the oracle. Retry-safe: nothing was written.
	ErrUnavailable = errors.New("grading oracle unavailable")
	// ErrBadResponse means the oracle answered but not with a parsable
	// grading result.
	ErrBadResponse = errors.New("grading oracle returned an unusable response")
)

// Client is the external AI grading oracle. Injected into the engine so
// tests can substitute a scripted double.
type Client interface {
	Grade(ctx context.Context, req *Request) (*models.GradingResult, error)
}

// OpenAIClient implements Client against an OpenAI-compatible
// chat/completions endpoint
type OpenAIClient struct {
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAIClient creates a client from configuration
func NewOpenAIClient(cfg config.OracleConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &OpenAIClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Grade sends one grading request and parses the structured verdict
func (c *OpenAIClient) Grade(ctx context.Context, req *Request) (*models.GradingResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	body := map[string]any{
		"model":      model,
		"messages":   req.Messages(),
		"max_tokens": maxTokens,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, httpResp.StatusCode, truncate(respBody, 200))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	return ParseResult(completion.Choices[0].Message.Content)
}

// ParseResult decodes the oracle's free-text reply into a grading result.
// The reply must be valid JSON (fenced code blocks are tolerated) with at
// least one answer carrying a well-formed score pair; anything else is
// fatal for the call.
func ParseResult(content string) (*models.GradingResult, error) {
	var result models.GradingResult
	if err := json.Unmarshal([]byte(stripFences(content)), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	if len(result.Answers) == 0 {
		return nil, fmt.Errorf("%w: no answers", ErrBadResponse)
	}

	for i, answer := range result.Answers {
		if _, _, ok := answer.Score(); !ok {
			return nil, fmt.Errorf("%w: answer %d has no score pair", ErrBadResponse, i+1)
		}
	}

	return &result, nil
}

// stripFences removes a markdown code fence when the model wraps its JSON
// in one
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
