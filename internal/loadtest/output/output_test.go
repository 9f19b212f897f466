package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/loadgate/internal/loadtest"
	"github.com/wesleyorama2/loadgate/internal/loadtest/metrics"
	"github.com/wesleyorama2/loadgate/internal/loadtest/runner"
	"github.com/wesleyorama2/loadgate/internal/loadtest/verdict"
)

func sampleRun() *runner.RunResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	healthy := &runner.BatchResult{
		Name: "health",
		Spec: loadtest.BatchSpec{
			Request:       loadtest.RequestSpec{Endpoint: "/health", Method: loadtest.MethodGet},
			TotalRequests: 100,
			Concurrency:   10,
		},
		Stats: &metrics.AggregateStats{
			TotalRequests:      100,
			SuccessfulRequests: 100,
			SuccessRate:        100,
			TotalElapsed:       2 * time.Second,
			RequestsPerSecond:  50,
			AvgLatency:         1200 * time.Millisecond,
			MedianLatency:      1100 * time.Millisecond,
			MinLatency:         900 * time.Millisecond,
			MaxLatency:         2 * time.Second,
			AvgTimeToFirstByte: 40 * time.Millisecond,
			P95TimeToFirstByte: 90 * time.Millisecond,
			NewConnections:     10,
			AvgConnectTime:     2 * time.Millisecond,
			StatusCodes:        map[int]int{200: 100},
		},
		Verdict: &verdict.Verdict{
			Passed: true,
			Reasons: []verdict.Reason{
				{Severity: verdict.SeverityAdvisory, Check: "avg_latency", Message: "average latency 1.200s exceeds 1.000s"},
			},
		},
	}

	errs := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		errs = append(errs, fmt.Sprintf("connection refused: attempt %d", i))
	}
	down := &runner.BatchResult{
		Name: "predict",
		Spec: loadtest.BatchSpec{
			Request:       loadtest.RequestSpec{Endpoint: "/predict", Method: loadtest.MethodPost},
			TotalRequests: 10,
			Concurrency:   2,
		},
		Stats: &metrics.AggregateStats{
			TotalRequests:     10,
			FailedRequests:    10,
			TransportFailures: 10,
			TotalElapsed:      10 * time.Millisecond,
			StatusCodes:       map[int]int{},
			DistinctErrors:    errs,
		},
		Verdict: &verdict.Verdict{
			Reasons: []verdict.Reason{
				{Severity: verdict.SeverityFail, Check: "success_rate", Message: "success rate 0.00% is below the minimum of 95.00%"},
			},
		},
	}

	invalid := &runner.BatchResult{
		Name: "bad",
		Spec: loadtest.BatchSpec{Concurrency: 0},
		Err:  errors.New("validation error on field 'concurrency': concurrency must be greater than 0"),
	}
	invalid.Error = invalid.Err.Error()

	return &runner.RunResult{
		ID:        "3f1c9a5e-0000-4000-8000-000000000001",
		Name:      "smoke",
		StartTime: start,
		EndTime:   start.Add(3 * time.Second),
		Batches:   []*runner.BatchResult{healthy, down, invalid},
		Passed:    false,
	}
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})
	assert.False(t, c.ColorsEnabled())

	c.PrintSummary(sampleRun())
	out := buf.String()

	assert.Contains(t, out, "health")
	assert.Contains(t, out, "Success Rate:  100.00%")
	assert.Contains(t, out, "⚠ average latency 1.200s exceeds 1.000s")
	assert.Contains(t, out, "✗ success rate 0.00%")
	assert.Contains(t, out, "connection refused: attempt 4")
	assert.NotContains(t, out, "connection refused: attempt 5")
	assert.Contains(t, out, "... and 2 more")
	assert.Contains(t, out, "configuration error")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "200×100")
	assert.Contains(t, out, "TTFB:          avg 40.0ms, p95 90.0ms")
	assert.Contains(t, out, "Connections:   10 new, avg setup 2.0ms")
	assert.NotContains(t, out, "\033[")
}

func TestConsole_QuietAndColors(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true, ForceColors: true})
	assert.True(t, c.ColorsEnabled())

	c.PrintHeader("smoke", "http://localhost:8000", 2)
	assert.Empty(t, buf.String())

	c.PrintSummary(sampleRun())
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "\033[")

	buf.Reset()
	c = NewConsole(ConsoleConfig{Writer: &buf, NoColor: true, ForceColors: true})
	assert.False(t, c.ColorsEnabled())
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, FormatJSON, sampleRun()))

	var report Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "smoke", report.Name)
	assert.Equal(t, 1, report.ExitCode)
	require.Len(t, report.Batches, 3)
	assert.InDelta(t, 1200.0, report.Batches[0].Stats.Latency.Avg, 1e-9)
	assert.Equal(t, 100, report.Batches[0].Stats.StatusCodes["200"])
	assert.InDelta(t, 90.0, report.Batches[0].Stats.Connection.P95TimeToFirstByteMs, 1e-9)
	assert.Equal(t, 10, report.Batches[0].Stats.Connection.NewConnections)
	assert.Nil(t, report.Batches[2].Stats)
	assert.NotEmpty(t, report.Batches[2].Error)
}

func TestWriteReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, FormatYAML, sampleRun()))

	var report Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &report))
	assert.False(t, report.Passed)
	assert.Equal(t, "predict", report.Batches[1].Name)
}

func TestWriteReport_JUnit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, FormatJUnit, sampleRun()))
	assert.True(t, strings.HasPrefix(buf.String(), xml.Header))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	require.Len(t, suites.TestSuites, 1)

	suite := suites.TestSuites[0]
	assert.Equal(t, 3, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, 1, suite.Errors)
	require.Len(t, suite.TestCases, 3)

	assert.Nil(t, suite.TestCases[0].Failure)
	assert.Contains(t, suite.TestCases[0].SystemOut, "advisory")
	require.NotNil(t, suite.TestCases[1].Failure)
	assert.Equal(t, "ThresholdFailure", suite.TestCases[1].Failure.Type)
	require.NotNil(t, suite.TestCases[2].Error)
}

func TestWriteReport_TextIsNotStructured(t *testing.T) {
	assert.Error(t, WriteReport(&bytes.Buffer{}, FormatText, sampleRun()))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatText, "JSON": FormatJSON, "yaml": FormatYAML, " junit ": FormatJUnit} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("html")
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))

	assert.Equal(t, "0ms", formatDurationShort(0))
	assert.Equal(t, "250µs", formatDurationShort(250*time.Microsecond))
	assert.Equal(t, "12.5ms", formatDurationShort(12500*time.Microsecond))
	assert.Equal(t, "1.500s", formatDurationShort(1500*time.Millisecond))

	assert.Equal(t, "450ms", formatDuration(450*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "1m 05s", formatDuration(65*time.Second))

	assert.Equal(t, "200×3 503×1", formatStatusCodes(map[int]int{503: 1, 200: 3}))
}
