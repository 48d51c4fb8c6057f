// Package payment is a client for the remote payment service.
//
// A call has three outcomes: the service completed the payment, the service
// declined it (both returned as a *Response), or the call itself failed, in
// which case the error is a *TransportError. Calls are never retried.
package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxResponseSize = 1 << 20

// DefaultPath is the payment endpoint path on the service base URL.
const DefaultPath = "/payment-service/api/payments/process"

// ErrUnavailable is wrapped by the TransportError returned while the circuit
// breaker is open.
var ErrUnavailable = errors.New("payment service unavailable")

// TransportError reports a failed call: network error, timeout, non-2xx
// status without a readable body, or a malformed response.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Config configures the payment client.
type Config struct {
	// URL is the payment service base URL, e.g. http://localhost:8080.
	URL string
	// Path is appended to URL. Defaults to DefaultPath.
	Path    string
	Timeout time.Duration
	Breaker BreakerConfig
}

// BreakerConfig controls the circuit breaker guarding the transport.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive transport failures that open
	// the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithHTTPClient overrides the underlying HTTP client. Its transport is
// still wrapped with tracing.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// Client calls the remote payment service.
type Client struct {
	http     *http.Client
	endpoint string
	breaker  *gobreaker.CircuitBreaker[*Response]
}

// NewClient creates a Client for cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("payment service URL is required")
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}
	if cfg.Breaker.OpenTimeout == 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if o.httpClient != nil {
		cp := *o.httpClient
		hc = &cp
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if o.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracerProvider))
	}
	if o.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(o.meterProvider))
	}
	hc.Transport = otelhttp.NewTransport(base, otelOpts...)

	maxFailures := cfg.Breaker.MaxFailures
	breaker := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "payment",
		MaxRequests: 1,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})

	return &Client{
		http:     hc,
		endpoint: strings.TrimRight(cfg.URL, "/") + path,
		breaker:  breaker,
	}, nil
}

// Process sends req exactly once. A declined payment is not an error: the
// caller inspects Response.Completed.
func (c *Client) Process(ctx context.Context, req Request) (*Response, error) {
	lg := zctx.From(ctx)

	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			// Open or half-open breaker rejected the call before it was sent.
			te = &TransportError{Err: errors.Wrap(ErrUnavailable, err.Error())}
		}
		lg.Warn("Payment call failed",
			zap.Int("status_code", te.StatusCode),
			zap.Error(te.Err),
		)
		return nil, te
	}

	lg.Info("Payment processed",
		zap.String("status", resp.Status),
		zap.String("transaction_id", resp.TransactionID),
		zap.String("card", maskCard(req.CardNumber)),
		zap.Stringer("amount", req.Amount),
	)
	return resp, nil
}

// Open reports whether the circuit breaker is currently rejecting calls.
func (c *Client) Open() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	var e jx.Encoder
	req.Encode(&e)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(e.Bytes()))
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "create request")}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "send request")}
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Err: errors.Wrap(err, "read response")}
	}

	// Declines arrive with a 4xx status and a full body, so the body is
	// authoritative whenever it can be read.
	var resp Response
	decodeErr := resp.Decode(jx.DecodeBytes(data))
	if decodeErr == nil && resp.Status == "" {
		decodeErr = errors.New("missing status")
	}
	if decodeErr != nil {
		if !isSuccess(httpResp.StatusCode) {
			return nil, &TransportError{
				StatusCode: httpResp.StatusCode,
				Err:        errors.Errorf("unexpected status %d", httpResp.StatusCode),
			}
		}
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Err: errors.Wrap(decodeErr, "decode response")}
	}
	if resp.Completed() && resp.TransactionID == "" {
		return nil, &TransportError{StatusCode: httpResp.StatusCode, Err: errors.New("completed payment without transaction id")}
	}
	return &resp, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// maskCard keeps only the last four digits for logging.
func maskCard(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return fmt.Sprintf("****%s", number[len(number)-4:])
}
