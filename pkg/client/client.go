package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// Client is a Go SDK for the evaluateai API
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new evaluateai client
func NewClient(baseURL, apiToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Evaluators

// ListEvaluators retrieves the caller's exams with profile and limits
func (c *Client) ListEvaluators(ctx context.Context) (*models.ListEvaluatorsResponse, error) {
	var out models.ListEvaluatorsResponse
	if err := c.call(ctx, "GET", "/api/v1/evaluators", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEvaluator defines a new exam
func (c *Client) CreateEvaluator(ctx context.Context, req models.CreateEvaluatorRequest) (*models.Evaluator, error) {
	var out models.Evaluator
	if err := c.call(ctx, "POST", "/api/v1/evaluators", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEvaluator retitles or relinks an exam
func (c *Client) UpdateEvaluator(ctx context.Context, id string, req models.UpdateEvaluatorRequest) (*models.Evaluator, error) {
	var out models.Evaluator
	if err := c.call(ctx, "PUT", "/api/v1/evaluators/"+id, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEvaluator removes an exam and refunds its quota unit
func (c *Client) DeleteEvaluator(ctx context.Context, id string) error {
	return c.call(ctx, "DELETE", "/api/v1/evaluators/"+id, nil, nil)
}

// Evaluations

// GetEvaluation retrieves the grading state for an exam
func (c *Client) GetEvaluation(ctx context.Context, evaluatorID string) (*models.Evaluation, error) {
	var out models.Evaluation
	if err := c.call(ctx, "GET", "/api/v1/evaluators/"+evaluatorID+"/evaluation", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAnswerSheets replaces the submitted sheets. Index i of the outer
// slice corresponds to roll number i+1; empty slots mean no submission.
func (c *Client) SetAnswerSheets(ctx context.Context, evaluatorID string, sheets [][]string) (*models.Evaluation, error) {
	var out models.Evaluation
	req := models.SetAnswerSheetsRequest{AnswerSheets: sheets}
	if err := c.call(ctx, "POST", "/api/v1/evaluators/"+evaluatorID+"/evaluation/sheets", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEvaluation removes the grading state for an exam
func (c *Client) DeleteEvaluation(ctx context.Context, evaluatorID string) error {
	return c.call(ctx, "DELETE", "/api/v1/evaluators/"+evaluatorID+"/evaluation", nil, nil)
}

// Grading

// Grade runs the oracle against one student's sheets. A nil result means
// the roll number has no submitted sheet.
func (c *Client) Grade(ctx context.Context, evaluatorID string, rollNo int) (*models.GradingResult, error) {
	var out models.GradingResult
	req := models.GradeRequest{RollNo: rollNo}
	if err := c.call(ctx, "POST", "/api/v1/evaluators/"+evaluatorID+"/grade", req, &out); err != nil {
		return nil, err
	}
	if len(out.Answers) == 0 {
		return nil, nil
	}
	return &out, nil
}

// Regrade reruns grading with a corrective prompt
func (c *Client) Regrade(ctx context.Context, evaluatorID string, rollNo int, prompt string) (*models.GradingResult, error) {
	var out models.GradingResult
	req := models.RegradeRequest{RollNo: rollNo, Prompt: prompt}
	if err := c.call(ctx, "POST", "/api/v1/evaluators/"+evaluatorID+"/regrade", req, &out); err != nil {
		return nil, err
	}
	if len(out.Answers) == 0 {
		return nil, nil
	}
	return &out, nil
}

// Results

// SingleResult retrieves one student's result sheet. Pass -1 for the
// first roster entry.
func (c *Client) SingleResult(ctx context.Context, evaluatorID string, rollNo int) (*models.StudentResult, error) {
	var out models.StudentResult
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/evaluators/%s/results/%d", evaluatorID, rollNo), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClassResults retrieves the whole-class result view
func (c *Client) ClassResults(ctx context.Context, evaluatorID string) (*models.ClassResults, error) {
	var out models.ClassResults
	if err := c.call(ctx, "GET", "/api/v1/evaluators/"+evaluatorID+"/results", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveResults replaces a student's graded answers after manual review
func (c *Client) SaveResults(ctx context.Context, evaluatorID string, rollNo int, results []models.Answer) (*models.Evaluation, error) {
	var out models.Evaluation
	req := models.SaveResultsRequest{RollNo: rollNo, Results: results}
	if err := c.call(ctx, "POST", "/api/v1/evaluators/"+evaluatorID+"/results", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Classes

// ListClasses retrieves the caller's rosters
func (c *Client) ListClasses(ctx context.Context) ([]*models.Class, error) {
	var out []*models.Class
	if err := c.call(ctx, "GET", "/api/v1/classes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateClass creates a roster
func (c *Client) CreateClass(ctx context.Context, req models.CreateClassRequest) (*models.Class, error) {
	var out models.Class
	if err := c.call(ctx, "POST", "/api/v1/classes", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClass retrieves a roster by ID
func (c *Client) GetClass(ctx context.Context, id string) (*models.Class, error) {
	var out models.Class
	if err := c.call(ctx, "GET", "/api/v1/classes/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddStudent adds one roster entry
func (c *Client) AddStudent(ctx context.Context, classID string, req models.AddStudentRequest) (*models.Class, error) {
	var out models.Class
	if err := c.call(ctx, "POST", "/api/v1/classes/"+classID+"/students", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Shop

// ListShopItems retrieves the limits packages for sale
func (c *Client) ListShopItems(ctx context.Context) ([]*models.ShopItem, error) {
	var out []*models.ShopItem
	if err := c.call(ctx, "GET", "/api/v1/shop/items", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPurchases retrieves the caller's purchase history
func (c *Client) ListPurchases(ctx context.Context) ([]*models.PurchaseView, error) {
	var out []*models.PurchaseView
	if err := c.call(ctx, "GET", "/api/v1/shop/purchases", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Limits

// GetLimits retrieves the caller's remaining quota counters
func (c *Client) GetLimits(ctx context.Context) (*models.Limits, error) {
	var out models.Limits
	if err := c.call(ctx, "GET", "/api/v1/limits", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs one API round trip and decodes the response envelope into
// out (which may be nil for calls with no payload of interest)
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	resp, err := c.doRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("API error: %s - %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("API error: request failed")
	}

	if out != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}

	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
