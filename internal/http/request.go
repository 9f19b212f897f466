package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request represents an HTTP request against a path relative to the client's base URL
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    interface{}
}

// NewRequest creates a new HTTP request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithHeaders adds multiple headers to the request
func (r *Request) WithHeaders(headers map[string]string) *Request {
	for key, value := range headers {
		r.Headers[key] = value
	}
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body interface{}) *Request {
	r.Body = body
	return r
}

// ResolveURL joins the base URL and the request path.
func (r *Request) ResolveURL(baseURL string) (string, error) {
	if baseURL == "" {
		if _, err := url.ParseRequestURI(r.Path); err != nil {
			return "", fmt.Errorf("invalid url %q: %w", r.Path, err)
		}
		return r.Path, nil
	}

	reqURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if reqURL.Scheme == "" || reqURL.Host == "" {
		return "", fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}

	path := r.Path
	query := ""
	if idx := strings.Index(path, "?"); idx >= 0 {
		path, query = path[:idx], path[idx+1:]
	}

	if reqURL.Path == "" {
		reqURL.Path = "/" + strings.TrimLeft(path, "/")
	} else {
		reqURL.Path = strings.TrimRight(reqURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if query != "" {
		reqURL.RawQuery = query
	}

	return reqURL.String(), nil
}

// Build constructs an http.Request bound to ctx
func (r *Request) Build(ctx context.Context, baseURL string) (*http.Request, error) {
	target, err := r.ResolveURL(baseURL)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(r.Headers)+1)
	for key, value := range r.Headers {
		headers[key] = value
	}

	// Prepare the body
	var bodyReader io.Reader
	if r.Body != nil {
		switch body := r.Body.(type) {
		case string:
			bodyReader = strings.NewReader(body)
		case []byte:
			bodyReader = bytes.NewReader(body)
		default:
			// Structured bodies are sent as JSON
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			bodyReader = bytes.NewReader(jsonBody)
			if _, ok := headers["Content-Type"]; !ok {
				headers["Content-Type"] = "application/json"
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return req, nil
}
