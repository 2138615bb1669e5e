package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Static errors for veo client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("veo: GENAI_API_KEY environment variable is not set")
	// ErrOperationNameRequired is returned when polling without an operation name.
	ErrOperationNameRequired = errors.New("veo: operation name is required")
	// ErrNoOperationReturned is returned when the submit response contains no operation name.
	ErrNoOperationReturned = errors.New("veo: submit failed: no operation returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("veo: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("veo: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("veo: request failed")
)

// Client defines the interface for interacting with the generation engine.
type Client interface {
	// Submit starts a generation request and returns its operation handle.
	Submit(ctx context.Context, prompt string, opts GenerateOptions) (Operation, error)

	// Poll refreshes the completion state of an operation. It performs a
	// single round-trip; the wait interval between polls is the caller's.
	Poll(ctx context.Context, name string) (Operation, error)

	// Download fetches the generated video from its URI into destPath.
	Download(ctx context.Context, videoURI, destPath string) error
}

// HTTPClient is the HTTP implementation of the veo Client interface.
type HTTPClient struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = u
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new veo HTTP client for the given model. The API key
// can be set via the WithAPIKey option; if not provided it is read from
// the GENAI_API_KEY environment variable.
func NewClient(model string, opts ...ClientOption) (*HTTPClient, error) {
	if model == "" {
		model = "veo-2.0-generate-001"
	}

	c := &HTTPClient{
		model:       model,
		baseURL:     "https://generativelanguage.googleapis.com/v1beta",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GENAI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Submit starts a generation request and returns its operation handle.
func (c *HTTPClient) Submit(ctx context.Context, prompt string, opts GenerateOptions) (Operation, error) {
	if opts.AspectRatio == "" {
		opts.AspectRatio = "16:9"
	}
	if opts.DurationSeconds == 0 {
		opts.DurationSeconds = 6
	}
	if opts.PersonGeneration == "" {
		opts.PersonGeneration = "allow_adult"
	}

	reqBody := generateRequest{
		Instances: []generateInstance{{Prompt: prompt}},
		Parameters: generateParameters{
			NegativePrompt:   opts.NegativePrompt,
			AspectRatio:      opts.AspectRatio,
			DurationSeconds:  opts.DurationSeconds,
			PersonGeneration: opts.PersonGeneration,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Operation{}, fmt.Errorf("veo: marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, c.model)

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, reqURL, bodyBytes, &resp); err != nil {
		return Operation{}, err
	}

	if resp.Name == "" {
		return Operation{}, ErrNoOperationReturned
	}

	return mapOperation(resp), nil
}

// Poll refreshes the completion state of an operation.
func (c *HTTPClient) Poll(ctx context.Context, name string) (Operation, error) {
	if name == "" {
		return Operation{}, ErrOperationNameRequired
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, name)

	var resp operationResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, reqURL, nil, &resp); err != nil {
		return Operation{}, err
	}

	return mapOperation(resp), nil
}

// Download fetches the generated video from its URI into destPath.
func (c *HTTPClient) Download(ctx context.Context, videoURI, destPath string) error {
	u, err := url.Parse(videoURI)
	if err != nil {
		return fmt.Errorf("veo: parse video URI: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("veo: create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("veo: download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	f, err := os.Create(destPath) // #nosec G304 - destPath is derived from the job, not user input
	if err != nil {
		return fmt.Errorf("veo: create output file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("veo: write output file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("veo: close output file: %w", err)
	}

	return nil
}

// mapOperation converts a wire operation into the client-facing handle.
func mapOperation(resp operationResponse) Operation {
	op := Operation{
		Name: resp.Name,
		Done: resp.Done,
	}
	if resp.Error != nil {
		op.Error = resp.Error.Message
	}
	if resp.Response != nil && resp.Response.GenerateVideoResponse != nil {
		samples := resp.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) > 0 {
			op.VideoURI = samples[0].Video.URI
		}
	}
	return op
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, reqURL string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("veo: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, reqURL, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("veo: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, reqURL string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("veo: create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("veo: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("veo: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
