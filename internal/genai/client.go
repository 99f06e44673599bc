// Package genai wraps the Gemini SDK for padtour: text generation, chat,
// single and multi-speaker speech synthesis and long-running video
// generation, behind a rate limiter, a speech cache and request metrics.
package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/cache"
	"github.com/padworld/padtour/internal/telemetry"
	"golang.org/x/time/rate"
	gemini "google.golang.org/genai"
)

// Default model names.
const (
	DefaultTextModel   = "gemini-2.5-flash"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVideoModel  = "veo-3.1-fast-generate-preview"
	DefaultLiveModel   = "gemini-2.5-flash-native-audio-preview-09-2025"
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("missing API key")

// APIError is a non-success response from the API. It matches
// activity.ErrTransientGeneration under errors.Is.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("genai: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("genai: HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return activity.ErrTransientGeneration
}

// Models names the model used for each operation.
type Models struct {
	Text   string
	Speech string
	Video  string
}

// DefaultModels returns the models padtour uses out of the box.
func DefaultModels() Models {
	return Models{
		Text:   DefaultTextModel,
		Speech: DefaultSpeechModel,
		Video:  DefaultVideoModel,
	}
}

// Client calls the API through the Gemini SDK. It is safe for concurrent
// use.
type Client struct {
	api     *gemini.Client
	baseURL string
	http    *http.Client
	models  Models
	limiter *rate.Limiter
	cache   *cache.Manager
	metrics *telemetry.Instruments
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API origin. The SDK appends the API version.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithModels overrides the model names. Empty fields keep the default.
func WithModels(m Models) Option {
	return func(c *Client) {
		if m.Text != "" {
			c.models.Text = m.Text
		}
		if m.Speech != "" {
			c.models.Speech = m.Speech
		}
		if m.Video != "" {
			c.models.Video = m.Video
		}
	}
}

// WithRequestsPerMinute limits outgoing requests. Zero disables the limit.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *Client) {
		if rpm <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
}

// WithCache caches synthesized speech.
func WithCache(m *cache.Manager) Option {
	return func(c *Client) { c.cache = m }
}

// WithInstruments records request metrics.
func WithInstruments(in *telemetry.Instruments) Option {
	return func(c *Client) { c.metrics = in }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		http:    &http.Client{Timeout: 2 * time.Minute},
		models:  DefaultModels(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  log.Default().WithPrefix("genai"),
	}
	for _, opt := range opts {
		opt(c)
	}

	api, err := gemini.NewClient(context.Background(), &gemini.ClientConfig{
		APIKey:      apiKey,
		Backend:     gemini.BackendGeminiAPI,
		HTTPClient:  c.http,
		HTTPOptions: gemini.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.api = api
	return c, nil
}

// Models returns the configured model names.
func (c *Client) Models() Models {
	return c.models
}

// call waits on the limiter, runs fn and records the request. SDK failures
// are mapped onto the activity error kinds.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(ctx, op, time.Since(start), err)
		if err != nil {
			c.logger.Debug("Request failed", "op", op, "error", err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		return classify(ctx, op, err)
	}
	return nil
}

func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr gemini.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	var corrupt base64.CorruptInputError
	if errors.As(err, &corrupt) {
		return fmt.Errorf("%s: %w: %v", op, activity.ErrMalformedPayload, err)
	}
	return fmt.Errorf("%s: %w: %v", op, activity.ErrTransientGeneration, err)
}

func (c *Client) generate(ctx context.Context, op, model string, contents []*gemini.Content, cfg *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
	var resp *gemini.GenerateContentResponse
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		resp, err = c.api.Models.GenerateContent(ctx, model, contents, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		reason := "no candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("%s: %w: %s", op, activity.ErrTransientGeneration, reason)
	}
	return resp, nil
}

// inlineData returns the first non-empty inline data part of the first
// candidate.
func inlineData(resp *gemini.GenerateContentResponse) *gemini.Blob {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}
