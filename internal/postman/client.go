package postman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public Postman API endpoint
	DefaultBaseURL = "https://api.getpostman.com"

	// RunnerAcceptHeader identifies the versioned collection run contract
	RunnerAcceptHeader = "application/vnd.postman.v2+json"
)

// APIError is returned when the Postman API answers with a non-2xx status
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postman api %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// PostOptions carries a pre-serialized request body and optional header overrides
type PostOptions struct {
	Body    string
	Headers map[string]string
}

// Client talks to the Postman API
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Config contains client configuration
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// NewClient creates a new Postman API client
func NewClient(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     config.APIKey,
		userAgent:  config.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     config.Logger.With().Str("component", "postman").Logger(),
	}
}

// Get issues a GET request and returns the raw JSON response
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, "", nil)
}

// Post issues a POST request with a caller-serialized body
func (c *Client) Post(ctx context.Context, path string, opts PostOptions) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, opts.Body, opts.Headers)
}

// Do performs a request against the API. Caller headers override the defaults.
func (c *Client) Do(ctx context.Context, method, path, body string, headers map[string]string) (json.RawMessage, error) {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("postman api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage(`{}`), nil
	}

	return json.RawMessage(data), nil
}
