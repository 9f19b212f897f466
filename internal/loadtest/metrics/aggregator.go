// Package metrics reduces the results of a batch to summary statistics.
package metrics

import (
	"errors"
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/loadgate/internal/loadtest"
)

// ErrNoResults is returned when there is no result set to aggregate.
var ErrNoResults = errors.New("no result set to aggregate")

// Histogram bounds in microseconds: 1µs to 1 hour, 3 significant figures.
const (
	histogramMin     int64 = 1
	histogramMax     int64 = 3600000000
	histogramSigFigs       = 3
)

// AggregateStats contains the summary of one batch.
type AggregateStats struct {
	TotalRequests      int `json:"totalRequests" yaml:"totalRequests"`
	SuccessfulRequests int `json:"successfulRequests" yaml:"successfulRequests"`
	FailedRequests     int `json:"failedRequests" yaml:"failedRequests"`

	// TransportFailures and HTTPFailures partition FailedRequests
	TransportFailures int `json:"transportFailures" yaml:"transportFailures"`
	HTTPFailures      int `json:"httpFailures" yaml:"httpFailures"`

	// SuccessRate is a percentage in [0, 100]
	SuccessRate float64 `json:"successRate" yaml:"successRate"`

	TotalElapsed      time.Duration `json:"totalElapsed" yaml:"totalElapsed"`
	RequestsPerSecond float64       `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	TotalBytes        int64         `json:"totalBytes" yaml:"totalBytes"`

	// Latency statistics cover successful requests only
	AvgLatency    time.Duration `json:"avgLatency" yaml:"avgLatency"`
	MedianLatency time.Duration `json:"medianLatency" yaml:"medianLatency"`
	MinLatency    time.Duration `json:"minLatency" yaml:"minLatency"`
	MaxLatency    time.Duration `json:"maxLatency" yaml:"maxLatency"`
	P90Latency    time.Duration `json:"p90Latency" yaml:"p90Latency"`
	P95Latency    time.Duration `json:"p95Latency" yaml:"p95Latency"`
	P99Latency    time.Duration `json:"p99Latency" yaml:"p99Latency"`

	// Time to first byte covers every request that received a response
	AvgTimeToFirstByte time.Duration `json:"avgTimeToFirstByte" yaml:"avgTimeToFirstByte"`
	P95TimeToFirstByte time.Duration `json:"p95TimeToFirstByte" yaml:"p95TimeToFirstByte"`

	// NewConnections counts requests that dialed; AvgConnectTime averages over them
	NewConnections int           `json:"newConnections" yaml:"newConnections"`
	AvgConnectTime time.Duration `json:"avgConnectTime" yaml:"avgConnectTime"`

	StatusCodes    map[int]int `json:"statusCodes,omitempty" yaml:"statusCodes,omitempty"`
	DistinctErrors []string    `json:"distinctErrors,omitempty" yaml:"distinctErrors,omitempty"`
}

// Aggregate summarizes a scheduled batch.
func Aggregate(run *loadtest.BatchRun) (*AggregateStats, error) {
	if run == nil || run.Results == nil {
		return nil, ErrNoResults
	}
	stats := Summarize(run.Results, run.Elapsed)
	return &stats, nil
}

// Summarize computes statistics for results, which may be in any order.
// The same multiset of results always yields the same statistics.
func Summarize(results []loadtest.RequestResult, elapsed time.Duration) AggregateStats {
	stats := AggregateStats{
		TotalRequests: len(results),
		TotalElapsed:  elapsed,
		StatusCodes:   make(map[int]int),
	}

	latencies := make([]time.Duration, 0, len(results))
	ttfbs := make([]time.Duration, 0, len(results))
	var connectSum time.Duration
	errorSet := make(map[string]struct{})

	for _, r := range results {
		if r.HasStatus() {
			stats.StatusCodes[r.StatusCode]++
			ttfbs = append(ttfbs, r.TimeToFirstByte)
		}
		if r.NewConnection {
			stats.NewConnections++
			connectSum += r.ConnectTime
		}
		stats.TotalBytes += r.BytesReceived

		switch r.Outcome() {
		case loadtest.OutcomeSuccess:
			stats.SuccessfulRequests++
			latencies = append(latencies, r.Latency)
		case loadtest.OutcomeHTTPFailure:
			stats.FailedRequests++
			stats.HTTPFailures++
		default:
			stats.FailedRequests++
			stats.TransportFailures++
		}

		if !r.Success && r.Error != "" {
			errorSet[r.Error] = struct{}{}
		}
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests) * 100
	}
	if elapsed > 0 {
		stats.RequestsPerSecond = float64(stats.TotalRequests) / elapsed.Seconds()
	}

	if len(errorSet) > 0 {
		stats.DistinctErrors = make([]string, 0, len(errorSet))
		for e := range errorSet {
			stats.DistinctErrors = append(stats.DistinctErrors, e)
		}
		sort.Strings(stats.DistinctErrors)
	}

	if stats.NewConnections > 0 {
		stats.AvgConnectTime = connectSum / time.Duration(stats.NewConnections)
	}

	summarizeLatencies(&stats, latencies)
	summarizeTimeToFirstByte(&stats, ttfbs)
	return stats
}

func summarizeTimeToFirstByte(stats *AggregateStats, ttfbs []time.Duration) {
	if len(ttfbs) == 0 {
		return
	}

	hist := hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	var sum, max time.Duration
	for _, d := range ttfbs {
		sum += d
		if d > max {
			max = d
		}
		hist.RecordValue(clampMicros(d))
	}

	stats.AvgTimeToFirstByte = sum / time.Duration(len(ttfbs))
	stats.P95TimeToFirstByte = percentile(hist, 95, max)
}

// summarizeLatencies fills the latency fields. Mean, median and extremes are
// exact; tail percentiles come from an HDR histogram.
func summarizeLatencies(stats *AggregateStats, latencies []time.Duration) {
	n := len(latencies)
	if n == 0 {
		return
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	hist := hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	var sum time.Duration
	for _, l := range latencies {
		sum += l
		hist.RecordValue(clampMicros(l))
	}

	stats.MinLatency = latencies[0]
	stats.MaxLatency = latencies[n-1]
	stats.AvgLatency = sum / time.Duration(n)
	if n%2 == 1 {
		stats.MedianLatency = latencies[n/2]
	} else {
		stats.MedianLatency = (latencies[n/2-1] + latencies[n/2]) / 2
	}

	stats.P90Latency = percentile(hist, 90, stats.MaxLatency)
	stats.P95Latency = percentile(hist, 95, stats.MaxLatency)
	stats.P99Latency = percentile(hist, 99, stats.MaxLatency)
}

// percentile reads a quantile from hist. Histogram buckets can round a value
// up past the true maximum, so the result is capped at max.
func percentile(hist *hdrhistogram.Histogram, q float64, max time.Duration) time.Duration {
	d := time.Duration(hist.ValueAtQuantile(q)) * time.Microsecond
	if d > max {
		return max
	}
	return d
}

func clampMicros(d time.Duration) int64 {
	us := d.Microseconds()
	if us < histogramMin {
		return histogramMin
	}
	if us > histogramMax {
		return histogramMax
	}
	return us
}
