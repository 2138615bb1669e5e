package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Static errors for prompt refinement operations.
var (
	// ErrNotConfigured is returned when no API key is configured.
	ErrNotConfigured = errors.New("prompt: OPENAI_API_KEY environment variable is not set")
	// ErrPromptRequired is returned when improving an empty prompt.
	ErrPromptRequired = errors.New("prompt: prompt is required")
	// ErrVariantRequired is returned when composing without a variant.
	ErrVariantRequired = errors.New("prompt: variant is required")
	// ErrInvalidMode is returned for an unsupported compose mode.
	ErrInvalidMode = errors.New("prompt: mode must be 'merge' or 'auto_refine'")
	// ErrBaseRequired is returned when merge mode has no base prompt.
	ErrBaseRequired = errors.New("prompt: mode 'merge' requires a base prompt")
	// ErrUnparsableResponse is returned when no JSON object can be extracted
	// from the model output.
	ErrUnparsableResponse = errors.New("prompt: model returned unparsable response")
	// ErrUnexpectedShape is returned when the extracted JSON does not match
	// the required improvement shape.
	ErrUnexpectedShape = errors.New("prompt: unexpected response shape")
	// ErrEmptyCompletion is returned when the model returns no choices.
	ErrEmptyCompletion = errors.New("prompt: model returned no completion")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("prompt: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("prompt: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("prompt: request failed")
)

const improveSystem = "You are a professional prompt engineer and creative director for short cinematic videos. " +
	"Given a short user prompt, do two things:\n\n" +
	"1) Produce 'auto_improved', a polished, generation-ready prompt suitable for text-to-video models. " +
	"Make it vivid and self-contained: include shot type, camera movement and angle, framing, atmosphere (mood, weather, time of day), " +
	"lighting and color grading, motion style, and an optional sound cue or reference style. " +
	"Keep it about 1-3 sentences and ready to paste into a generator.\n\n" +
	"2) Produce EXACTLY 4 'variants'. Each variant must be an OBJECT with two fields:\n" +
	" - 'concise': an extra short creative idea (roughly 4-8 words) suitable for a quick list.\n" +
	" - 'expanded': a full, polished prompt that incorporates the concise idea in cinematic detail.\n\n" +
	"Variants must prioritize scene content: actors, actions, props, interactions, animals, or environmental elements. " +
	"Pure camera or effect ideas ('drone angle', 'slow motion') are not valid 'concise' values; convert them into content-focused variants. " +
	"Order variants from conventional to experimental. " +
	"If the user prompt lacks specifics, make confident creative choices; do not ask clarifying questions.\n\n" +
	"Return ONLY a single valid JSON object with two keys: 'auto_improved' (string) and 'variants' (array of exactly 4 objects " +
	"with exactly the fields 'concise' and 'expanded'). No commentary, no markdown, no code fences."

const mergeSystem = "You are a concise prompt polisher for text-to-video. Polishing must keep all details, " +
	"improve wording for clarity and cinematic descriptiveness, and return only the polished prompt as plain text."

const refineSystem = "You are a professional prompt engineer. Given an improved base prompt (may be empty) and a single variant detail, " +
	"produce one polished, cinematic, generation-ready prompt that combines them clearly. Return only the final prompt as plain text."

// OpenAIClient refines prompts through the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an OpenAIClient.
type ClientOption func(*OpenAIClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(c *OpenAIClient) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *OpenAIClient) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(u string) ClientOption {
	return func(c *OpenAIClient) {
		c.baseURL = u
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *OpenAIClient) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *OpenAIClient) {
		c.baseBackoff = d
	}
}

// NewOpenAIClient creates a prompt refinement client for the given model.
// The API key can be set via the WithAPIKey option; if not provided it is
// read from the OPENAI_API_KEY environment variable.
func NewOpenAIClient(model string, opts ...ClientOption) (*OpenAIClient, error) {
	if model == "" {
		model = "gpt-3.5-turbo"
	}

	c := &OpenAIClient{
		model:       model,
		baseURL:     "https://api.openai.com/v1",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	return c, nil
}

// Improve turns a raw prompt into a generation-ready one plus exactly four
// alternative scene ideas.
func (c *OpenAIClient) Improve(ctx context.Context, prompt string) (*Improvement, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrPromptRequired
	}

	text, err := c.chat(ctx, improveSystem, fmt.Sprintf("User prompt: %q", prompt), 0.7, 400)
	if err != nil {
		return nil, err
	}

	return parseImprovement(text)
}

// Compose combines the improved base prompt and a chosen variant detail
// into a single final prompt.
func (c *OpenAIClient) Compose(ctx context.Context, input ComposeInput) (string, error) {
	variant := strings.TrimSpace(input.Variant)
	base := strings.TrimSpace(input.BaseImproved)
	mode := input.Mode
	if mode == "" {
		mode = ModeAutoRefine
	}

	if variant == "" {
		return "", ErrVariantRequired
	}
	if !mode.Valid() {
		return "", ErrInvalidMode
	}
	if mode == ModeMerge && base == "" {
		return "", ErrBaseRequired
	}

	var system, user string
	var maxTokens int
	switch mode {
	case ModeMerge:
		combined := strings.TrimRight(base, ". ") + ". " + variant
		system = mergeSystem
		user = "Polish this prompt to be concise and cinematic:\n\n" + combined
		maxTokens = 200
	default:
		system = refineSystem
		user = fmt.Sprintf("Base improved prompt:\n%s\n\nVariant detail:\n%s\n\nCombine and produce a single polished prompt.", base, variant)
		maxTokens = 220
	}

	text, err := c.chat(ctx, system, user, 0.6, maxTokens)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// chat performs one completion round-trip and returns the message text.
func (c *OpenAIClient) chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("prompt: marshal request: %w", err)
	}

	var resp chatResponse
	if err := c.doRequestWithRetry(ctx, c.baseURL+"/chat/completions", bodyBytes, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *OpenAIClient) doRequestWithRetry(ctx context.Context, reqURL string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("prompt: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, reqURL, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("prompt: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *OpenAIClient) doRequest(ctx context.Context, reqURL string, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("prompt: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("prompt: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("prompt: read response: %w", err)}
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
			return fmt.Errorf("prompt: unmarshal response: %w", err)
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

// parseImprovement extracts the JSON object from the model output and
// validates the improvement shape.
func parseImprovement(text string) (*Improvement, error) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnparsableResponse, truncate(text, 200))
	}

	var imp Improvement
	if err := json.Unmarshal([]byte(raw), &imp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}

	imp.AutoImproved = strings.TrimSpace(imp.AutoImproved)
	if imp.AutoImproved == "" {
		return nil, fmt.Errorf("%w: missing 'auto_improved'", ErrUnexpectedShape)
	}
	if len(imp.Variants) != 4 {
		return nil, fmt.Errorf("%w: expected exactly 4 variants, got %d", ErrUnexpectedShape, len(imp.Variants))
	}
	for i := range imp.Variants {
		imp.Variants[i].Concise = strings.TrimSpace(imp.Variants[i].Concise)
		imp.Variants[i].Expanded = strings.TrimSpace(imp.Variants[i].Expanded)
		if imp.Variants[i].Concise == "" {
			return nil, fmt.Errorf("%w: variant #%d missing 'concise'", ErrUnexpectedShape, i+1)
		}
		if imp.Variants[i].Expanded == "" {
			return nil, fmt.Errorf("%w: variant #%d missing 'expanded'", ErrUnexpectedShape, i+1)
		}
	}

	return &imp, nil
}

// extractJSON returns the widest substring spanning the first '{' and the
// last '}'. Chat models occasionally wrap JSON in prose or code fences.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
