package profanity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIConfig configures an APIClassifier
type APIConfig struct {
	Endpoint string
	APIKey   string
	// Timeout bounds a whole classification including retries
	Timeout    time.Duration
	MaxRetries int
	FailClosed bool
	Logger     *slog.Logger
	// Transport overrides the pooled, instrumented default
	Transport http.RoundTripper
}

// APIClassifier asks a remote profanity filter service
type APIClassifier struct {
	endpoint    string
	apiKey      string
	timeout     time.Duration
	failVerdict bool
	client      *retryablehttp.Client
	logger      *slog.Logger
}

var _ verdictSource = (*APIClassifier)(nil)

type apiResponse struct {
	HasProfanity *bool `json:"has_profanity"`
}

// retryLogger routes retryablehttp logs to slog. Intermediate failures are
// expected with retries, so errors are logged as warnings.
type retryLogger struct {
	inner *slog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...any) { l.inner.Warn(msg, keysAndValues...) }
func (l retryLogger) Warn(msg string, keysAndValues ...any)  { l.inner.Warn(msg, keysAndValues...) }
func (l retryLogger) Info(msg string, keysAndValues ...any)  { l.inner.Debug(msg, keysAndValues...) }
func (l retryLogger) Debug(msg string, keysAndValues ...any) { l.inner.Debug(msg, keysAndValues...) }

func NewAPIClassifier(cfg APIConfig) (*APIClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("profanity endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid profanity endpoint: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "profanity-api")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Transport = transport
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = retryablehttp.LeveledLogger(retryLogger{inner: logger})
	client.CheckRetry = retryPolicy
	// hand back the final response so its status can be reported
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &APIClassifier{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		timeout:     cfg.Timeout,
		failVerdict: cfg.FailClosed,
		client:      client,
		logger:      logger,
	}, nil
}

// retryPolicy does not retry 429s; the quota will not recover within a request
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Classify returns the service's verdict, or the failure verdict when the
// service cannot be reached or answers unexpectedly
func (c *APIClassifier) Classify(ctx context.Context, text string) bool {
	profane, _ := c.verdict(ctx, text)
	return profane
}

func (c *APIClassifier) verdict(ctx context.Context, text string) (bool, bool) {
	profane, ok := c.classify(ctx, text)
	if !ok {
		profane = c.failVerdict
	}
	classifyCount.WithLabelValues("api", strconv.FormatBool(profane)).Inc()
	return profane, ok
}

func (c *APIClassifier) classify(ctx context.Context, text string) (bool, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, _ := url.Parse(c.endpoint)
	q := u.Query()
	q.Set("text", text)
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		c.fail("request", err)
		return false, false
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	apiDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "network"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		if resp != nil {
			resp.Body.Close()
		}
		c.fail(reason, err)
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.fail("status", fmt.Errorf("unexpected status %d", resp.StatusCode))
		return false, false
	}

	var out apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		c.fail("decode", err)
		return false, false
	}
	if out.HasProfanity == nil {
		c.fail("decode", errors.New("response is missing has_profanity"))
		return false, false
	}
	return *out.HasProfanity, true
}

func (c *APIClassifier) fail(reason string, err error) {
	apiFailureCount.WithLabelValues(reason).Inc()
	c.logger.Warn("profanity check failed, using fallback verdict", "reason", reason, "fallback", c.failVerdict, "err", err)
}
