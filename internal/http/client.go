package http

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// Client represents an HTTP client bound to one base URL
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// TransportConfig contains connection pool settings for load generation.
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultTransportConfig returns pool settings sized for the given concurrency.
func DefaultTransportConfig(concurrency int) TransportConfig {
	if concurrency < 1 {
		concurrency = 1
	}
	return TransportConfig{
		MaxIdleConns:        concurrency * 2,
		MaxIdleConnsPerHost: concurrency,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewTransport creates an http.Transport with the configured settings.
func NewTransport(cfg TransportConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	transport.IdleConnTimeout = cfg.IdleConnTimeout
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return transport
}

// NewClient creates a new HTTP client with the given options.
//
// The client has no overall timeout; callers bound each call through the
// context passed to Do.
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{},
		headers:    make(map[string]string),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithTransport replaces the client's round tripper
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// CloseIdleConnections closes idle pooled connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Do executes an HTTP request and returns the response with detailed timing information
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := req.Build(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	trace, timing := newTimingTrace()
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	// A response was received; a short body read does not change that.
	bodyBytes, _ := io.ReadAll(httpResp.Body)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Timing:     timing.snapshot(),
		Body:       bodyBytes,
	}, nil
}

// timingRecorder collects httptrace callbacks. Dials may report from their
// own goroutines, and can outlive Do when the request is cancelled.
type timingRecorder struct {
	mu    sync.Mutex
	start time.Time
	info  TimingInfo

	dnsStart, connectStart, tlsStart time.Time
}

func newTimingTrace() (*httptrace.ClientTrace, *timingRecorder) {
	rec := &timingRecorder{start: time.Now()}

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			rec.mark(&rec.dnsStart)
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			rec.since(&rec.dnsStart, &rec.info.DNSLookupTime)
		},
		ConnectStart: func(network, addr string) {
			rec.mark(&rec.connectStart)
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				rec.since(&rec.connectStart, &rec.info.TCPConnectTime)
			}
		},
		TLSHandshakeStart: func() {
			rec.mark(&rec.tlsStart)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil {
				rec.since(&rec.tlsStart, &rec.info.TLSHandshakeTime)
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			rec.mu.Lock()
			rec.info.ConnReused = info.Reused
			rec.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			rec.since(&rec.start, &rec.info.TimeToFirstByte)
		},
	}
	return trace, rec
}

func (r *timingRecorder) mark(t *time.Time) {
	r.mu.Lock()
	*t = time.Now()
	r.mu.Unlock()
}

func (r *timingRecorder) since(from *time.Time, into *time.Duration) {
	r.mu.Lock()
	if !from.IsZero() {
		*into = time.Since(*from)
	}
	r.mu.Unlock()
}

func (r *timingRecorder) snapshot() TimingInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}
