package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/loadgate/internal/loadtest/runner"
	"github.com/wesleyorama2/loadgate/internal/loadtest/verdict"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
	// FormatJUnit outputs in JUnit XML format (for CI/CD integration)
	FormatJUnit OutputFormat = "junit"
)

// ParseFormat converts a format name into an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML, FormatJUnit:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text, json, yaml or junit)", s)
	}
}

// Report is the structured form of a run.
type Report struct {
	ID         string        `json:"id" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	StartTime  string        `json:"startTime" yaml:"startTime"`
	DurationMs int64         `json:"durationMs" yaml:"durationMs"`
	Passed     bool          `json:"passed" yaml:"passed"`
	ExitCode   int           `json:"exitCode" yaml:"exitCode"`
	Batches    []BatchReport `json:"batches" yaml:"batches"`
}

// BatchReport is the structured form of one batch.
type BatchReport struct {
	Name        string           `json:"name" yaml:"name"`
	Method      string           `json:"method" yaml:"method"`
	Endpoint    string           `json:"endpoint" yaml:"endpoint"`
	Requests    int              `json:"requests" yaml:"requests"`
	Concurrency int              `json:"concurrency" yaml:"concurrency"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
	Stats       *StatsData       `json:"stats,omitempty" yaml:"stats,omitempty"`
	Verdict     *verdict.Verdict `json:"verdict,omitempty" yaml:"verdict,omitempty"`
}

// StatsData holds aggregate statistics with latencies in milliseconds.
type StatsData struct {
	TotalRequests      int            `json:"totalRequests" yaml:"totalRequests"`
	SuccessfulRequests int            `json:"successfulRequests" yaml:"successfulRequests"`
	FailedRequests     int            `json:"failedRequests" yaml:"failedRequests"`
	HTTPFailures       int            `json:"httpFailures" yaml:"httpFailures"`
	TransportFailures  int            `json:"transportFailures" yaml:"transportFailures"`
	SuccessRate        float64        `json:"successRate" yaml:"successRate"`
	ElapsedMs          float64        `json:"elapsedMs" yaml:"elapsedMs"`
	RequestsPerSecond  float64        `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	TotalBytes         int64          `json:"totalBytes" yaml:"totalBytes"`
	Latency            LatencyData    `json:"latencyMs" yaml:"latencyMs"`
	Connection         ConnectionData `json:"connection" yaml:"connection"`
	StatusCodes        map[string]int `json:"statusCodes,omitempty" yaml:"statusCodes,omitempty"`
	DistinctErrors     []string       `json:"distinctErrors,omitempty" yaml:"distinctErrors,omitempty"`
}

// LatencyData holds latency statistics in milliseconds.
type LatencyData struct {
	Avg    float64 `json:"avg" yaml:"avg"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	P90    float64 `json:"p90" yaml:"p90"`
	P95    float64 `json:"p95" yaml:"p95"`
	P99    float64 `json:"p99" yaml:"p99"`
}

// ConnectionData holds response timing and connection reuse, in milliseconds.
type ConnectionData struct {
	AvgTimeToFirstByteMs float64 `json:"avgTimeToFirstByteMs" yaml:"avgTimeToFirstByteMs"`
	P95TimeToFirstByteMs float64 `json:"p95TimeToFirstByteMs" yaml:"p95TimeToFirstByteMs"`
	NewConnections       int     `json:"newConnections" yaml:"newConnections"`
	AvgConnectMs         float64 `json:"avgConnectMs" yaml:"avgConnectMs"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// NewReport converts a run into its structured form.
func NewReport(result *runner.RunResult) *Report {
	r := &Report{
		ID:         result.ID,
		Name:       result.Name,
		StartTime:  result.StartTime.Format(time.RFC3339),
		DurationMs: result.Duration().Milliseconds(),
		Passed:     result.Passed,
		ExitCode:   result.ExitCode(),
		Batches:    make([]BatchReport, 0, len(result.Batches)),
	}

	for _, b := range result.Batches {
		br := BatchReport{
			Name:        b.Name,
			Method:      string(b.Spec.Request.Method),
			Endpoint:    b.Spec.Request.Endpoint,
			Requests:    b.Spec.TotalRequests,
			Concurrency: b.Spec.Concurrency,
			Error:       b.Error,
			Verdict:     b.Verdict,
		}
		if s := b.Stats; s != nil {
			codes := make(map[string]int, len(s.StatusCodes))
			for code, n := range s.StatusCodes {
				codes[fmt.Sprintf("%d", code)] = n
			}
			br.Stats = &StatsData{
				TotalRequests:      s.TotalRequests,
				SuccessfulRequests: s.SuccessfulRequests,
				FailedRequests:     s.FailedRequests,
				HTTPFailures:       s.HTTPFailures,
				TransportFailures:  s.TransportFailures,
				SuccessRate:        s.SuccessRate,
				ElapsedMs:          millis(s.TotalElapsed),
				RequestsPerSecond:  s.RequestsPerSecond,
				TotalBytes:         s.TotalBytes,
				Latency: LatencyData{
					Avg:    millis(s.AvgLatency),
					Median: millis(s.MedianLatency),
					Min:    millis(s.MinLatency),
					Max:    millis(s.MaxLatency),
					P90:    millis(s.P90Latency),
					P95:    millis(s.P95Latency),
					P99:    millis(s.P99Latency),
				},
				Connection: ConnectionData{
					AvgTimeToFirstByteMs: millis(s.AvgTimeToFirstByte),
					P95TimeToFirstByteMs: millis(s.P95TimeToFirstByte),
					NewConnections:       s.NewConnections,
					AvgConnectMs:         millis(s.AvgConnectTime),
				},
				StatusCodes:    codes,
				DistinctErrors: s.DistinctErrors,
			}
		}
		r.Batches = append(r.Batches, br)
	}

	return r
}

// WriteReport writes result to w in a structured format. FormatText is
// rendered by Console instead.
func WriteReport(w io.Writer, format OutputFormat, result *runner.RunResult) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewReport(result))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(NewReport(result)); err != nil {
			return err
		}
		return enc.Close()
	case FormatJUnit:
		data, err := xml.MarshalIndent(NewJUnitReport(result), "", "  ")
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		_, err = io.WriteString(w, "\n")
		return err
	default:
		return fmt.Errorf("format %q is not a structured format", format)
	}
}

// JUnitTestSuites represents the root element containing all test suites
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a JUnit test suite
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a JUnit test case
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitFailure `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a JUnit test failure
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// NewJUnitReport builds one suite for the run with one case per batch. A
// failed success-rate gate becomes a failure; a batch that could not run
// becomes an error. Advisories go to system-out.
func NewJUnitReport(result *runner.RunResult) *JUnitTestSuites {
	suite := JUnitTestSuite{
		Name:      result.Name,
		Tests:     len(result.Batches),
		Time:      result.Duration().Seconds(),
		Timestamp: result.StartTime.Format(time.RFC3339),
		TestCases: make([]JUnitTestCase, 0, len(result.Batches)),
	}

	for _, b := range result.Batches {
		tc := JUnitTestCase{
			Name:      b.Name,
			Classname: "loadgate." + result.Name,
		}

		switch {
		case b.Err != nil:
			suite.Errors++
			tc.Error = &JUnitFailure{
				Message: "batch could not run",
				Type:    "ConfigurationError",
				Content: b.Err.Error(),
			}
		case b.Verdict != nil:
			tc.Time = b.Stats.TotalElapsed.Seconds()
			if !b.Verdict.Passed {
				suite.Failures++
				var lines []string
				for _, r := range b.Verdict.Failures() {
					lines = append(lines, r.Message)
				}
				tc.Failure = &JUnitFailure{
					Message: "success rate below threshold",
					Type:    "ThresholdFailure",
					Content: strings.Join(lines, "\n"),
				}
			}
			var out []string
			for _, r := range b.Verdict.Advisories() {
				out = append(out, "advisory: "+r.Message)
			}
			for _, e := range b.Stats.DistinctErrors {
				out = append(out, "error: "+e)
			}
			tc.SystemOut = strings.Join(out, "\n")
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	return &JUnitTestSuites{TestSuites: []JUnitTestSuite{suite}}
}

// formatStatusCodes renders a status histogram as "200×95 503×5".
func formatStatusCodes(codes map[int]int) string {
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, code := range keys {
		parts = append(parts, fmt.Sprintf("%d×%d", code, codes[code]))
	}
	return strings.Join(parts, " ")
}
