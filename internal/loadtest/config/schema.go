// Package config loads and validates load test plans.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan is the root of a test plan file.
//
// Example YAML:
//
//	name: "Recommendation API"
//	settings:
//	  baseUrl: "http://localhost:8000"
//	  timeout: 10s
//	thresholds:
//	  minSuccessRate: 95
//	  maxAvgLatency: 1s
//	  checks:
//	    - "p95 < 500ms"
//	batches:
//	  - name: health
//	    endpoint: /health
//	    method: GET
//	    requests: 100
//	    concurrency: 10
type Plan struct {
	// Name of the plan (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description of the plan (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings apply to every batch
	Settings Settings `json:"settings" yaml:"settings"`

	// Thresholds define the pass/fail criteria
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Batches run sequentially in the order given
	Batches []BatchConfig `json:"batches" yaml:"batches"`
}

// Settings contains target and HTTP settings shared by all batches.
type Settings struct {
	// BaseURL is the target service, e.g. http://localhost:8000
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	// Timeout is the default per-request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Headers are sent with every request
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// ThresholdsConfig is the file form of verdict thresholds. Absent values
// take the defaults.
type ThresholdsConfig struct {
	// MinSuccessRate is a percentage between 0 and 100
	MinSuccessRate *float64 `json:"minSuccessRate,omitempty" yaml:"minSuccessRate,omitempty"`

	// MaxAvgLatency is advisory; 0 disables it
	MaxAvgLatency *Duration `json:"maxAvgLatency,omitempty" yaml:"maxAvgLatency,omitempty"`

	// Checks are advisory expressions like "p95 < 500ms"
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// BatchConfig describes one batch.
type BatchConfig struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Method   string `json:"method,omitempty" yaml:"method,omitempty"`

	// Payload is the request body. A string is decoded as JSON text.
	Payload interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`

	Requests    int `json:"requests" yaml:"requests"`
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Timeout overrides settings.timeout for this batch
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Headers are merged over settings.headers
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML.
// It accepts Go duration strings ("10s", "500ms") and bare seconds (10, 0.5).
type Duration time.Duration

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "500ms"
//   - Seconds as a number: "30", "1.5"
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("duration cannot be negative: %s", s)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		s = ""
	}
	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	dur, err := ParseDurationString(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
