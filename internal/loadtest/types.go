// Package loadtest drives a fixed number of HTTP requests against one
// endpoint through a bounded worker pool and records every outcome.
package loadtest

import (
	"fmt"
	"strings"
	"time"
)

// Method is an HTTP method supported by the harness.
type Method string

const (
	// MethodGet issues requests without a body.
	MethodGet Method = "GET"
	// MethodPost issues requests carrying a structured body.
	MethodPost Method = "POST"
)

// ParseMethod converts a user-supplied method name into a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost:
		return m, nil
	default:
		return "", &ValidationError{Field: "method", Message: fmt.Sprintf("unsupported method: %q", s)}
	}
}

// AllowsBody reports whether requests with this method may carry a payload.
func (m Method) AllowsBody() bool {
	return m == MethodPost
}

// DefaultTimeout is the per-request timeout used when none is configured.
const DefaultTimeout = 10 * time.Second

// RequestSpec describes one call. It is shared read-only by every worker
// executing a batch.
type RequestSpec struct {
	// Endpoint is the path appended to the base URL
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Method is the HTTP method
	Method Method `json:"method" yaml:"method"`

	// Payload is the structured body, encoded as JSON. Only valid for methods that take a body.
	Payload interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`

	// Headers are sent with every request of the batch
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Timeout bounds a single call
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Outcome classifies a RequestResult.
type Outcome string

const (
	// OutcomeSuccess means a 200 response was received.
	OutcomeSuccess Outcome = "success"
	// OutcomeHTTPFailure means the service answered with a non-200 status.
	OutcomeHTTPFailure Outcome = "http_failure"
	// OutcomeTransportFailure means no response was obtained.
	OutcomeTransportFailure Outcome = "transport_failure"
)

// RequestResult is the immutable outcome of one executed RequestSpec.
type RequestResult struct {
	// StatusCode is the HTTP status, 0 when no response was received
	StatusCode int `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`

	// Latency is measured for every call, including failed ones
	Latency time.Duration `json:"latency" yaml:"latency"`

	// Success is true iff a response was received with status 200
	Success bool `json:"success" yaml:"success"`

	// Error describes a transport failure; empty whenever a response was received
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// BytesReceived is the size of the response body
	BytesReceived int64 `json:"bytesReceived,omitempty" yaml:"bytesReceived,omitempty"`

	// TimeToFirstByte runs from dispatch to the first response byte; zero without a response
	TimeToFirstByte time.Duration `json:"timeToFirstByte,omitempty" yaml:"timeToFirstByte,omitempty"`

	// NewConnection is true when the call dialed instead of reusing a pooled connection
	NewConnection bool `json:"newConnection,omitempty" yaml:"newConnection,omitempty"`

	// ConnectTime covers DNS, TCP and TLS setup of a new connection
	ConnectTime time.Duration `json:"connectTime,omitempty" yaml:"connectTime,omitempty"`
}

// HasStatus reports whether an HTTP response was received.
func (r RequestResult) HasStatus() bool {
	return r.StatusCode != 0
}

// Outcome returns the failure classification of the result.
func (r RequestResult) Outcome() Outcome {
	switch {
	case r.Success:
		return OutcomeSuccess
	case r.HasStatus():
		return OutcomeHTTPFailure
	default:
		return OutcomeTransportFailure
	}
}

// BatchSpec is one load-test run: a fixed number of identical requests
// against one endpoint at one concurrency level.
type BatchSpec struct {
	// Name identifies the batch in reports
	Name string `json:"name" yaml:"name"`

	// Request is the call every invocation performs
	Request RequestSpec `json:"request" yaml:"request"`

	// TotalRequests is the number of invocations
	TotalRequests int `json:"totalRequests" yaml:"totalRequests"`

	// Concurrency is the maximum number of in-flight invocations
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// DisplayName returns the batch name, falling back to method and endpoint.
func (b *BatchSpec) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("%s %s", b.Request.Method, b.Request.Endpoint)
}

// BatchRun holds the raw outcome of a scheduled batch.
type BatchRun struct {
	// Results has exactly one entry per invocation, in no particular order
	Results []RequestResult

	// Elapsed is the wall-clock time from first dispatch to last result
	Elapsed time.Duration
}
