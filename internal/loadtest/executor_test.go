package loadtest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lghttp "github.com/wesleyorama2/loadgate/internal/http"
)

func TestHTTPExecutor_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	exec := NewHTTPExecutor(lghttp.NewClient(lghttp.WithBaseURL(server.URL)))
	result := exec.Execute(context.Background(), &RequestSpec{
		Endpoint: "/health",
		Method:   MethodGet,
		Timeout:  time.Second,
	})

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Empty(t, result.Error)
	assert.Greater(t, result.Latency, time.Duration(0))
	assert.Equal(t, int64(len(`{"status":"healthy"}`)), result.BytesReceived)
	assert.Equal(t, OutcomeSuccess, result.Outcome())
	assert.Greater(t, result.TimeToFirstByte, time.Duration(0))
	assert.LessOrEqual(t, result.TimeToFirstByte, result.Latency)
}

func TestHTTPExecutor_ConnectionTiming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := lghttp.NewClient(
		lghttp.WithBaseURL(server.URL),
		lghttp.WithTransport(lghttp.NewTransport(lghttp.DefaultTransportConfig(1))),
	)
	defer client.CloseIdleConnections()
	exec := NewHTTPExecutor(client)
	spec := &RequestSpec{Endpoint: "/health", Method: MethodGet, Timeout: time.Second}

	first := exec.Execute(context.Background(), spec)
	second := exec.Execute(context.Background(), spec)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.True(t, first.NewConnection)
	assert.Greater(t, first.ConnectTime, time.Duration(0))
	assert.False(t, second.NewConnection)
	assert.Zero(t, second.ConnectTime)
}

func TestHTTPExecutor_PostsPayload(t *testing.T) {
	var gotBody string
	var gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		gotBody = buf.String()
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewHTTPExecutor(lghttp.NewClient(lghttp.WithBaseURL(server.URL)))
	result := exec.Execute(context.Background(), &RequestSpec{
		Endpoint: "/predict",
		Method:   MethodPost,
		Payload:  map[string]interface{}{"user_id": 1, "viewed_products": []int{1, 2, 3}},
		Timeout:  time.Second,
	})

	require.True(t, result.Success)
	assert.JSONEq(t, `{"user_id":1,"viewed_products":[1,2,3]}`, gotBody)
	assert.Equal(t, "application/json", gotType)
}

func TestHTTPExecutor_Non200IsHTTPFailure(t *testing.T) {
	tests := []int{http.StatusCreated, http.StatusNotFound, http.StatusInternalServerError}

	for _, status := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			exec := NewHTTPExecutor(lghttp.NewClient(lghttp.WithBaseURL(server.URL)))
			result := exec.Execute(context.Background(), &RequestSpec{
				Endpoint: "/predict",
				Method:   MethodGet,
				Timeout:  time.Second,
			})

			assert.False(t, result.Success)
			assert.Equal(t, status, result.StatusCode)
			assert.Empty(t, result.Error, "an HTTP response must not carry a transport error")
			assert.Equal(t, OutcomeHTTPFailure, result.Outcome())
		})
	}
}

func TestHTTPExecutor_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	exec := NewHTTPExecutor(lghttp.NewClient(lghttp.WithBaseURL(baseURL)))
	result := exec.Execute(context.Background(), &RequestSpec{
		Endpoint: "/health",
		Method:   MethodGet,
		Timeout:  time.Second,
	})

	assert.False(t, result.Success)
	assert.False(t, result.HasStatus())
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, OutcomeTransportFailure, result.Outcome())
}

func TestHTTPExecutor_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	exec := NewHTTPExecutor(lghttp.NewClient(lghttp.WithBaseURL(server.URL)))
	result := exec.Execute(context.Background(), &RequestSpec{
		Endpoint: "/slow",
		Method:   MethodGet,
		Timeout:  50 * time.Millisecond,
	})

	assert.False(t, result.Success)
	assert.Zero(t, result.StatusCode)
	assert.True(t, strings.HasPrefix(result.Error, "timeout"), "got %q", result.Error)
	assert.GreaterOrEqual(t, result.Latency, 50*time.Millisecond)
}

func TestHTTPExecutor_InvalidBaseURL(t *testing.T) {
	exec := NewHTTPExecutor(lghttp.NewClient(lghttp.WithBaseURL("not a url")))
	result := exec.Execute(context.Background(), &RequestSpec{
		Endpoint: "/health",
		Method:   MethodGet,
		Timeout:  time.Second,
	})

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, OutcomeTransportFailure, result.Outcome())
}

func TestDescribeTransportError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		prefix string
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, "timeout after 1s"},
		{"generic", errors.New("boom"), "transport: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescribeTransportError(tt.err, time.Second)
			assert.True(t, strings.HasPrefix(got, tt.prefix), "got %q", got)
		})
	}
}
