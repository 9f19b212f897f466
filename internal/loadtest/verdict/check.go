package verdict

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/loadgate/internal/loadtest/metrics"
)

var checkPattern = regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)

// Check is a parsed advisory expression like "p95 < 500ms".
type Check struct {
	Metric string
	Op     string

	// Threshold holds nanoseconds for latency metrics
	Threshold float64
}

var latencyMetrics = map[string]func(*metrics.AggregateStats) time.Duration{
	"min": func(s *metrics.AggregateStats) time.Duration { return s.MinLatency },
	"max": func(s *metrics.AggregateStats) time.Duration { return s.MaxLatency },
	"avg": func(s *metrics.AggregateStats) time.Duration { return s.AvgLatency },
	"med": func(s *metrics.AggregateStats) time.Duration { return s.MedianLatency },
	"p50": func(s *metrics.AggregateStats) time.Duration { return s.MedianLatency },
	"p90": func(s *metrics.AggregateStats) time.Duration { return s.P90Latency },
	"p95": func(s *metrics.AggregateStats) time.Duration { return s.P95Latency },
	"p99": func(s *metrics.AggregateStats) time.Duration { return s.P99Latency },

	"ttfb":     func(s *metrics.AggregateStats) time.Duration { return s.AvgTimeToFirstByte },
	"ttfb_p95": func(s *metrics.AggregateStats) time.Duration { return s.P95TimeToFirstByte },
	"connect":  func(s *metrics.AggregateStats) time.Duration { return s.AvgConnectTime },
}

var rateMetrics = map[string]func(*metrics.AggregateStats) float64{
	"rps":          func(s *metrics.AggregateStats) float64 { return s.RequestsPerSecond },
	"success_rate": func(s *metrics.AggregateStats) float64 { return s.SuccessRate },
	"failed":       func(s *metrics.AggregateStats) float64 { return float64(s.FailedRequests) },
	"count":        func(s *metrics.AggregateStats) float64 { return float64(s.TotalRequests) },
	"new_conns":    func(s *metrics.AggregateStats) float64 { return float64(s.NewConnections) },
}

// ParseCheck parses a check expression.
func ParseCheck(expr string) (*Check, error) {
	matches := checkPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid check expression: %q", expr)
	}

	c := &Check{Metric: matches[1], Op: matches[2]}
	switch c.Op {
	case "<", "<=", ">", ">=", "==", "=", "!=", "<>":
	default:
		return nil, fmt.Errorf("invalid operator %q in check %q", c.Op, expr)
	}

	valueStr := strings.TrimSpace(matches[3])
	switch {
	case latencyMetrics[c.Metric] != nil:
		d, err := time.ParseDuration(valueStr)
		if err != nil {
			return nil, fmt.Errorf("invalid duration in check %q: %w", expr, err)
		}
		c.Threshold = float64(d)
	case rateMetrics[c.Metric] != nil:
		f, err := strconv.ParseFloat(strings.TrimSuffix(valueStr, "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number in check %q: %w", expr, err)
		}
		c.Threshold = f
	default:
		return nil, fmt.Errorf("unknown metric %q in check %q", c.Metric, expr)
	}

	return c, nil
}

// Evaluate reports whether stats satisfy the check.
func (c *Check) Evaluate(stats *metrics.AggregateStats) bool {
	if fn, ok := latencyMetrics[c.Metric]; ok {
		return compareValues(float64(fn(stats)), c.Op, c.Threshold)
	}
	if fn, ok := rateMetrics[c.Metric]; ok {
		return compareValues(fn(stats), c.Op, c.Threshold)
	}
	return false
}

func (c *Check) actual(stats *metrics.AggregateStats) string {
	if fn, ok := latencyMetrics[c.Metric]; ok {
		return fn(stats).String()
	}
	if fn, ok := rateMetrics[c.Metric]; ok {
		return strconv.FormatFloat(fn(stats), 'f', 2, 64)
	}
	return "unknown"
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==", "=":
		return actual == threshold
	case "!=", "<>":
		return actual != threshold
	default:
		return false
	}
}
