package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

// Client is a Go SDK for the exercise-submitter API
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	dialer     *websocket.Dialer
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

// NewClient creates a new exercise-submitter client acting as username
func NewClient(baseURL, username, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		dialer: websocket.DefaultDialer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error answered by the service
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Code, e.Message)
}

// IsCode reports whether err is an APIError with code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Message is a localized message for the student
type Message struct {
	Category string            `json:"category"`
	Text     string            `json:"text"`
	Problems []json.RawMessage `json:"problems,omitempty"`
	Details  string            `json:"details,omitempty"`
}

// SubmitRequest represents a submission request
type SubmitRequest struct {
	Exercise  string `json:"exercise"`
	SourceDir string `json:"source_dir"`
}

// SubmitResult represents the answer to a submission
type SubmitResult struct {
	RecordID    string              `json:"record_id"`
	State       models.OutcomeState `json:"state"`
	Revision    int64               `json:"revision"`
	SourceFiles int                 `json:"source_files"`
	Message     Message             `json:"message"`
}

// CheckResult represents the pre-submission check of a folder
type CheckResult struct {
	Stats    workspace.Stats     `json:"stats"`
	Warnings []workspace.Warning `json:"warnings"`
	Messages []string            `json:"messages"`
}

// ListOptions contains options for listing submissions
type ListOptions struct {
	Exercise string
	Limit    int
	Offset   int
}

// Submit uploads a local folder for an exercise
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result SubmitResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/submissions", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitWithProgress submits over the progress stream and calls onState for
// every pipeline step
func (c *Client) SubmitWithProgress(ctx context.Context, req SubmitRequest, onState func(state string)) (*SubmitResult, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/submissions/stream"

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.username+":"+c.password)))

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, fmt.Errorf("stream rejected: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	for {
		var msg struct {
			Type    string        `json:"type"`
			State   string        `json:"state"`
			Data    *SubmitResult `json:"data"`
			Code    string        `json:"code"`
			Message string        `json:"message"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("failed to read progress: %w", err)
		}

		switch msg.Type {
		case "state":
			if onState != nil {
				onState(msg.State)
			}
		case "result":
			return msg.Data, nil
		case "error":
			return nil, &APIError{Code: msg.Code, Message: msg.Message}
		}
	}
}

// Check inspects a local folder against the course limits
func (c *Client) Check(ctx context.Context, sourceDir string) (*CheckResult, error) {
	body, err := json.Marshal(map[string]string{"source_dir": sourceDir})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result CheckResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/checks", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Assignments lists the assignments of the course
func (c *Client) Assignments(ctx context.Context) ([]models.Exercise, error) {
	var result struct {
		Assignments []models.Exercise `json:"assignments"`
		Total       int               `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/assignments", nil, &result); err != nil {
		return nil, err
	}
	return result.Assignments, nil
}

// Submissions lists the submission log of the user
func (c *Client) Submissions(ctx context.Context, opts *ListOptions) ([]*models.SubmissionRecord, error) {
	path := "/api/v1/submissions"
	if opts != nil {
		params := url.Values{}
		if opts.Exercise != "" {
			params.Set("exercise", opts.Exercise)
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	var result struct {
		Submissions []*models.SubmissionRecord `json:"submissions"`
		Total       int                        `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Submissions, nil
}

// History lists the revisions submitted for exercise, oldest first
func (c *Client) History(ctx context.Context, exercise string) ([]models.Revision, error) {
	var result struct {
		Revisions []models.Revision `json:"revisions"`
		Total     int               `json:"total"`
	}
	path := fmt.Sprintf("/api/v1/exercises/%s/history", url.PathEscape(exercise))
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Revisions, nil
}

// Replay restores a revision of exercise into targetDir. Revision 0 restores
// the latest one. The restored revision number is returned.
func (c *Client) Replay(ctx context.Context, exercise string, revision int64, targetDir string) (int64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"target_dir": targetDir,
		"revision":   revision,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result struct {
		Revision int64 `json:"revision"`
	}
	path := fmt.Sprintf("/api/v1/exercises/%s/replay", url.PathEscape(exercise))
	if err := c.call(ctx, http.MethodPost, path, bytes.NewReader(body), &result); err != nil {
		return 0, err
	}
	return result.Revision, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

// call performs a request and decodes the data of the response envelope into out
func (c *Client) call(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
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

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != nil {
			envelope.Error.Status = resp.StatusCode
			return nil, envelope.Error
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
