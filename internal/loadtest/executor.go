package loadtest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"

	lghttp "github.com/wesleyorama2/loadgate/internal/http"
)

// Executor performs exactly one call for a RequestSpec.
//
// Implementations never return an error: every outcome, including
// transport failures, is reported inside the RequestResult.
type Executor interface {
	Execute(ctx context.Context, spec *RequestSpec) RequestResult
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, spec *RequestSpec) RequestResult

// Execute calls f(ctx, spec).
func (f ExecutorFunc) Execute(ctx context.Context, spec *RequestSpec) RequestResult {
	return f(ctx, spec)
}

// HTTPExecutor executes RequestSpecs against a base URL over HTTP.
type HTTPExecutor struct {
	client *lghttp.Client
	logger *zap.Logger
}

// HTTPExecutorOption configures an HTTPExecutor.
type HTTPExecutorOption func(*HTTPExecutor)

// WithExecutorLogger sets the logger used for per-request debug output.
func WithExecutorLogger(logger *zap.Logger) HTTPExecutorOption {
	return func(e *HTTPExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewHTTPExecutor creates an executor that sends requests through client.
func NewHTTPExecutor(client *lghttp.Client, opts ...HTTPExecutorOption) *HTTPExecutor {
	e := &HTTPExecutor{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs one call. Success is a 200 response; any other status is
// an HTTP failure with no Error text; anything that prevents a response is a
// transport failure with a descriptive Error and no status.
func (e *HTTPExecutor) Execute(ctx context.Context, spec *RequestSpec) RequestResult {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	req := lghttp.NewRequest(string(spec.Method), spec.Endpoint).WithHeaders(spec.Headers)
	if spec.Payload != nil {
		req.WithBody(spec.Payload)
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := e.client.Do(callCtx, req)
	latency := time.Since(start)

	if err != nil {
		desc := DescribeTransportError(err, timeout)
		e.logger.Debug("request failed",
			zap.String("method", string(spec.Method)),
			zap.String("endpoint", spec.Endpoint),
			zap.Duration("latency", latency),
			zap.String("error", desc))
		return RequestResult{
			Latency: latency,
			Error:   desc,
		}
	}

	e.logger.Debug("request completed",
		zap.String("method", string(spec.Method)),
		zap.String("endpoint", spec.Endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", latency),
		zap.Duration("ttfb", resp.Timing.TimeToFirstByte),
		zap.Bool("newConn", !resp.Timing.ConnReused))

	return RequestResult{
		StatusCode:      resp.StatusCode,
		Latency:         latency,
		Success:         resp.StatusCode == 200,
		BytesReceived:   resp.BytesReceived(),
		TimeToFirstByte: resp.Timing.TimeToFirstByte,
		NewConnection:   !resp.Timing.ConnReused,
		ConnectTime:     resp.Timing.ConnectTime(),
	}
}

// DescribeTransportError renders a transport failure as "<category>: <detail>".
func DescribeTransportError(err error, timeout time.Duration) string {
	if err == nil {
		return ""
	}

	var (
		netErr     net.Error
		dnsErr     *net.DNSError
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Sprintf("timeout after %s: %v", timeout, err)
	case errors.As(err, &dnsErr):
		return fmt.Sprintf("dns: %v", err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Sprintf("connection refused: %v", err)
	case errors.Is(err, syscall.ECONNRESET):
		return fmt.Sprintf("connection reset: %v", err)
	case errors.As(err, &certErr), errors.As(err, &unknownCA),
		errors.As(err, &hostErr), errors.As(err, &invalidErr),
		errors.As(err, &recordErr):
		return fmt.Sprintf("tls: %v", err)
	default:
		return fmt.Sprintf("transport: %v", err)
	}
}
