package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

// Common errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExerciseNotFound   = errors.New("exercise not found")
	ErrUnavailable        = errors.New("management system unavailable")
)

// Client talks to the student management system REST API
type Client struct {
	baseURL       string
	authURL       string
	course        string
	repositoryURL string
	httpClient    *http.Client
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

// WithAuthURL sets a separate login endpoint base URL
func WithAuthURL(authURL string) Option {
	return func(c *Client) {
		c.authURL = authURL
	}
}

// NewClient creates a management client for course. repositoryURL is used
// for submission paths that do not name their repository.
func NewClient(baseURL, course, repositoryURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		authURL:       baseURL,
		course:        course,
		repositoryURL: repositoryURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the management system location
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login verifies creds against the management system
func (c *Client) Login(ctx context.Context, creds models.Credentials) error {
	_, err := c.doRequest(ctx, c.authURL+"/api/login", creds)
	return err
}

// ListAssignments returns the assignments of the course visible to the user
func (c *Client) ListAssignments(ctx context.Context, creds models.Credentials) ([]models.Exercise, error) {
	resp, err := c.doRequest(ctx, fmt.Sprintf("%s/api/courses/%s/assignments", c.baseURL, url.PathEscape(c.course)), creds)
	if err != nil {
		return nil, err
	}

	var result struct {
		Assignments []models.Exercise `json:"assignments"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return result.Assignments, nil
}

// ResolveSubmissionPath returns where the user (or the user's group)
// submits exercise
func (c *Client) ResolveSubmissionPath(ctx context.Context, creds models.Credentials, exercise string) (models.SubmissionTarget, error) {
	path := fmt.Sprintf("%s/api/courses/%s/assignments/%s/submission-path", c.baseURL, url.PathEscape(c.course), url.PathEscape(exercise))
	resp, err := c.doRequest(ctx, path, creds)
	if err != nil {
		return models.SubmissionTarget{}, err
	}

	var target models.SubmissionTarget
	if err := json.Unmarshal(resp, &target); err != nil {
		return models.SubmissionTarget{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if target.Path == "" {
		return models.SubmissionTarget{}, fmt.Errorf("%w: empty submission path for %s", ErrUnavailable, exercise)
	}
	if target.URL == "" {
		target.URL = c.repositoryURL
	}

	return target, nil
}

// IsGroupWork reports whether exercise is solved in groups
func (c *Client) IsGroupWork(ctx context.Context, creds models.Credentials, exercise string) (bool, error) {
	assignments, err := c.ListAssignments(ctx, creds)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if a.Name == exercise {
			return a.GroupWork, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrExerciseNotFound, exercise)
}

// doRequest performs an authenticated GET request
func (c *Client) doRequest(ctx context.Context, endpoint string, creds models.Credentials) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrExerciseNotFound, req.URL.Path)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
