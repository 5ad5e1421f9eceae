package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/angeloszaimis/cat-facts/internal/circuitbreaker"
	"github.com/angeloszaimis/cat-facts/internal/metrics"
)

const defaultMaxBytes = 10 << 20

// Client performs GET requests against one named upstream.
type Client struct {
	name      string
	http      *http.Client
	userAgent string
	maxBytes  int64
	breaker   *circuitbreaker.CircuitBreaker
	collector *metrics.Collector
	logger    *slog.Logger
}

// Options configures a Client. Breaker and Collector may be nil.
type Options struct {
	Name       string
	HTTPClient *http.Client
	UserAgent  string
	MaxBytes   int64
	Breaker    *circuitbreaker.CircuitBreaker
	Collector  *metrics.Collector
	Logger     *slog.Logger
}

// Request describes one outbound GET.
type Request struct {
	URL     string
	Query   url.Values
	Timeout time.Duration
	Accept  string
}

// Response is a fully read upstream response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// NewHTTPClient returns the pooled client shared by every upstream. It has
// no overall timeout; each call carries its own deadline.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16

	return &http.Client{Transport: transport}
}

func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		name:      opts.Name,
		http:      opts.HTTPClient,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		breaker:   opts.Breaker,
		collector: opts.Collector,
		logger:    opts.Logger.With(slog.String("upstream", opts.Name)),
	}
}

// Name returns the upstream name used in logs, metrics and breaker keys.
func (c *Client) Name() string {
	return c.name
}

// Get performs req and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, req Request) (*Response, error) {
	// A malformed URL must not use up the half-open trial call
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, fmt.Errorf("%s: %w", c.name, circuitbreaker.ErrOpen)
	}

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.do(callCtx, target, req.Accept)
	duration := time.Since(start)

	c.record(ctx, resp, err, duration)

	if err != nil {
		c.logger.Warn("Upstream call failed",
			slog.String("url", target),
			slog.Duration("duration", duration),
			slog.Any("err", err))
		return nil, err
	}

	c.logger.Debug("Upstream call completed",
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(resp.Body)),
		slog.Duration("duration", duration))

	return resp, nil
}

// GetJSON performs req and decodes the 2xx body into v.
func (c *Client) GetJSON(ctx context.Context, req Request, v any) error {
	if req.Accept == "" {
		req.Accept = "application/json"
	}

	resp, err := c.Get(ctx, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%s: %w: %v", c.name, ErrDecode, err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, target, accept string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	defer res.Body.Close()

	out := &Response{
		URL:         res.Request.URL.String(),
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, res.Body, 4<<10)
		return out, &StatusError{Upstream: c.name, StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBytes+1))
	if err != nil {
		return out, fmt.Errorf("%s: reading body: %w", c.name, err)
	}
	if int64(len(body)) > c.maxBytes {
		return out, fmt.Errorf("%s: %w (limit %d bytes)", c.name, ErrTooLarge, c.maxBytes)
	}
	out.Body = body

	return out, nil
}

// record feeds the breaker and the metrics collector. A call cut short by
// the caller, because the inbound client went away or the caller's own
// deadline passed, says nothing about the upstream.
func (c *Client) record(parent context.Context, resp *Response, err error, duration time.Duration) {
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	c.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventUpstreamCompleted,
		Upstream:   c.name,
		Duration:   duration,
		StatusCode: statusCode,
		Failed:     err != nil,
	})

	if c.breaker == nil || parent.Err() != nil {
		return
	}

	if isUpstreamFault(err) {
		c.breaker.RecordFailure()
		return
	}
	c.breaker.RecordSuccess()
}

func isUpstreamFault(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	return !errors.Is(err, ErrTooLarge)
}

func buildURL(raw string, query url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if len(query) > 0 {
		merged := u.Query()
		for key, values := range query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}
		u.RawQuery = merged.Encode()
	}

	return u.String(), nil
}
