// Package seventeentrack integrates the 17TRACK tracking provider: an
// HTTP client for tracking-number registration and a webhook handler
// that appends provider events to the raw history.
package seventeentrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-tracking/core"
	"github.com/goliatone/go-tracking/ratelimit"
)

const ProviderID = core.ProviderSeventeenTrack

const (
	DefaultBaseURL = "https://api.17track.net"
	registerPath   = "/track/v2.2/register"
	tokenHeader    = "17token"

	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

// Client talks to the 17TRACK REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     core.Logger
	limiter    *ratelimit.AdaptivePolicy
}

var _ core.RegistrationClient = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithTimeout bounds each API call. Non-positive values keep the
// current timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimiter throttles registration calls from the provider's own
// rate-limit feedback.
func WithRateLimiter(limiter *ratelimit.AdaptivePolicy) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

func NewClient(apiKey string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("providers/seventeentrack: api key is required")
	}
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type registerEntry struct {
	Number  string `json:"number"`
	Carrier any    `json:"carrier"`
}

// Register announces a tracking number so the provider starts pushing
// events. An empty carrier hint requests auto-detection. Transport
// errors and non-2xx responses surface as retryable provider failures.
func (c *Client) Register(ctx context.Context, trackingNumber string, carrierHint string) error {
	if c == nil {
		return fmt.Errorf("providers/seventeentrack: client is required")
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return core.NewBadInput("providers/seventeentrack: tracking number is required")
	}

	bucket := ratelimit.Key{ProviderID: ProviderID, BucketKey: "register"}
	if c.limiter != nil {
		if err := c.limiter.BeforeCall(ctx, bucket); err != nil {
			return err
		}
	}

	entry := registerEntry{Number: trackingNumber, Carrier: 0}
	if hint := strings.TrimSpace(carrierHint); hint != "" {
		entry.Carrier = hint
	}
	body, err := json.Marshal([]registerEntry{entry})
	if err != nil {
		return fmt.Errorf("providers/seventeentrack: encode register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("providers/seventeentrack: build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.WrapProviderFailure(err, "providers/seventeentrack: register request failed")
	}
	defer resp.Body.Close()

	if c.limiter != nil {
		if err := c.limiter.AfterCall(ctx, bucket, ratelimit.ResponseMeta{
			StatusCode: resp.StatusCode,
			Headers:    flattenHeader(resp.Header),
		}); err != nil {
			return err
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return core.NewProviderFailure(fmt.Sprintf(
			"providers/seventeentrack: register returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)),
		))
	}

	c.logInfo("tracking number registered", "tracking_number", trackingNumber)
	return nil
}

func flattenHeader(header http.Header) map[string]string {
	if len(header) == 0 {
		return nil
	}
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}

func (c *Client) logInfo(msg string, args ...any) {
	if c != nil && c.logger != nil {
		c.logger.Info(msg, args...)
	}
}
