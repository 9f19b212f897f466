package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected method GET, got %s", r.Method)
		}
		if r.URL.Path != "/health" {
			t.Errorf("Expected path /health, got %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "loadgate-test" {
			t.Errorf("Expected User-Agent loadgate-test, got %s", r.Header.Get("User-Agent"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	client := NewClient(
		WithHeader("User-Agent", "loadgate-test"),
		WithBaseURL(server.URL),
	)

	resp, err := client.Do(context.Background(), NewRequest("GET", "/health"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if string(resp.Body) != `{"status":"healthy"}` {
		t.Errorf("Unexpected body %s", string(resp.Body))
	}
	if resp.BytesReceived() != int64(len(`{"status":"healthy"}`)) {
		t.Errorf("Unexpected BytesReceived %d", resp.BytesReceived())
	}
	if resp.Timing.TimeToFirstByte <= 0 {
		t.Error("Expected TimeToFirstByte to be recorded")
	}
}

func TestClient_Do_Timing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithTransport(NewTransport(DefaultTransportConfig(1))))
	defer client.CloseIdleConnections()

	first, err := client.Do(context.Background(), NewRequest("GET", "/"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if first.Timing.ConnReused {
		t.Error("Expected the first request to open a new connection")
	}
	if first.Timing.ConnectTime() <= 0 {
		t.Errorf("Expected a connect time for a new connection, got %v", first.Timing.ConnectTime())
	}
	if first.Timing.TimeToFirstByte < 20*time.Millisecond {
		t.Errorf("Expected TimeToFirstByte to include the server delay, got %v", first.Timing.TimeToFirstByte)
	}

	second, err := client.Do(context.Background(), NewRequest("GET", "/"))
	if err != nil {
		t.Fatalf("Error executing request: %v", err)
	}
	if !second.Timing.ConnReused {
		t.Error("Expected the second request to reuse the pooled connection")
	}
	if second.Timing.ConnectTime() != 0 {
		t.Errorf("Expected zero connect time on a reused connection, got %v", second.Timing.ConnectTime())
	}
}

func TestClient_Do_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	resp, err := client.Do(context.Background(), NewRequest("GET", "/health"))
	if err != nil {
		t.Fatalf("A non-2xx response should not be an error, got %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestClient_Do_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, NewRequest("GET", "/slow"))
	if err == nil {
		t.Fatal("Expected a deadline error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestClient_WithOptions(t *testing.T) {
	transport := NewTransport(DefaultTransportConfig(8))

	client := NewClient(
		WithBaseURL("https://example.com"),
		WithHeader("X-Test", "test-value"),
		WithTransport(transport),
	)

	if client.httpClient.Timeout != 0 {
		t.Errorf("Expected no overall client timeout, got %v", client.httpClient.Timeout)
	}
	if client.baseURL != "https://example.com" {
		t.Errorf("Expected baseURL https://example.com, got %s", client.baseURL)
	}
	if client.headers["X-Test"] != "test-value" {
		t.Errorf("Expected header X-Test: test-value, got %s", client.headers["X-Test"])
	}
	if transport.MaxIdleConnsPerHost != 8 {
		t.Errorf("Expected MaxIdleConnsPerHost 8, got %d", transport.MaxIdleConnsPerHost)
	}
}
