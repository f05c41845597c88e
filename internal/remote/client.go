// Package remote implements the job and zone APIs over the Bright Data REST API.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/internal/metrics"
	"github.com/JakeFAU/brightdata-go/pkg/sdkerr"
)

// Defaults for Config.
const (
	DefaultBaseURL   = "https://api.brightdata.com"
	DefaultUserAgent = "brightdata-go/1.0"
	DefaultTimeout   = 30 * time.Second
	maxErrorBody     = 2048
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	UserAgent      string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client is an authenticated HTTP client for the remote API. It owns its
// transport so Close releases every pooled connection.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	transport *http.Transport
	http      *http.Client
	limiter   *Limiter
	retry     *RetryPolicy
	logger    *zap.Logger
}

// New builds a Client from cfg.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, sdkerr.Validationf("token", "API token is required (see %s)", sdkerr.APIKeysURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, sdkerr.Validationf("base_url", "invalid base URL %q: %v", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		baseURL:   base,
		token:     strings.TrimSpace(cfg.Token),
		userAgent: ua,
		transport: transport,
		http:      &http.Client{Transport: transport, Timeout: timeout},
		limiter:   NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		retry:     NewRetryPolicy(maxAttempts, cfg.RetryBaseDelay),
		logger:    logger,
	}, nil
}

// Close releases idle connections held by the client's transport.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r response) text() string {
	if len(r.body) > maxErrorBody {
		return string(r.body[:maxErrorBody])
	}
	return string(r.body)
}

// call describes one API call. endpoint is the low-cardinality metrics label.
type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	body     any
}

// do sends the call, retrying server errors and transient transport failures.
// Any response that is not retried is returned whatever its status.
func (c *Client) do(ctx context.Context, cl call) (response, error) {
	var payload []byte
	if cl.body != nil {
		encoded, err := json.Marshal(cl.body)
		if err != nil {
			return response{}, fmt.Errorf("encode %s body: %w", cl.endpoint, err)
		}
		payload = encoded
	}
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.once(ctx, cl, target, payload)
		retryErr := err
		if err == nil && resp.status >= http.StatusInternalServerError {
			retryErr = &sdkerr.APIError{Status: resp.status, Message: cl.endpoint, Body: resp.text()}
		}
		if retryErr == nil || !c.retry.ShouldRetry(retryErr, attempt) {
			return resp, err
		}
		wait := c.retry.Backoff(attempt)
		c.logger.Warn("retrying API call",
			zap.String("endpoint", cl.endpoint),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.MaxAttempts()),
			zap.Duration("backoff", wait),
			zap.Error(retryErr),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return response{}, fmt.Errorf("%s: %w", cl.endpoint, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) once(ctx context.Context, cl call, target string, payload []byte) (response, error) {
	if err := c.limiter.Wait(ctx, target); err != nil {
		return response{}, err
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return response{}, fmt.Errorf("build %s request: %w", cl.endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(cl.endpoint, 0, time.Since(start))
		return response{}, fmt.Errorf("%s %s: %w", cl.method, cl.endpoint, err)
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()
	data, err := io.ReadAll(res.Body)
	metrics.ObserveAPIRequest(cl.endpoint, res.StatusCode, time.Since(start))
	if err != nil {
		return response{}, fmt.Errorf("read %s response: %w", cl.endpoint, err)
	}
	c.logger.Debug("API call",
		zap.String("endpoint", cl.endpoint),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return response{status: res.StatusCode, body: data}, nil
}

// check maps a non-2xx response to a typed error.
func check(resp response, action string) error {
	if resp.ok() {
		return nil
	}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return &sdkerr.AuthenticationError{
			Status:      resp.status,
			Message:     fmt.Sprintf("%s rejected: %s", action, resp.text()),
			Remediation: sdkerr.APIKeysURL,
		}
	}
	return &sdkerr.APIError{Status: resp.status, Message: action + " failed", Body: resp.text()}
}

func decodeJSON(resp response, into any, action string) error {
	if err := json.Unmarshal(resp.body, into); err != nil {
		return &sdkerr.APIError{Status: resp.status, Message: "decode " + action + " response: " + err.Error()}
	}
	return nil
}

// Ping issues a lightweight authenticated call.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, call{endpoint: endpointZones, method: http.MethodGet, path: pathActiveZones})
	if err != nil {
		return err
	}
	return check(resp, "connection test")
}

var errUnknownJob = errors.New("unknown job id")
