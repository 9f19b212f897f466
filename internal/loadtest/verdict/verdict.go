// Package verdict judges aggregated batch statistics against thresholds.
//
// The success-rate threshold is a hard gate: a batch below it fails. The
// average-latency threshold and any extra check expressions are advisory;
// a violation is reported but never changes the outcome.
package verdict

import (
	"fmt"
	"time"

	"github.com/wesleyorama2/loadgate/internal/loadtest/metrics"
)

// Default threshold values.
const (
	DefaultMinSuccessRate = 95.0
	DefaultMaxAvgLatency  = time.Second
)

// Thresholds configures the verdict for a batch.
type Thresholds struct {
	// MinSuccessRatePercent is the lowest acceptable success rate, in percent
	MinSuccessRatePercent float64 `json:"minSuccessRate" yaml:"minSuccessRate"`

	// MaxAvgLatency is the advisory ceiling for the average latency. Zero disables it.
	MaxAvgLatency time.Duration `json:"maxAvgLatency" yaml:"maxAvgLatency"`

	// Checks are advisory expressions such as "p95 < 500ms" or "rps >= 50"
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// DefaultThresholds returns a 95% success gate with a 1s latency advisory.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSuccessRatePercent: DefaultMinSuccessRate,
		MaxAvgLatency:         DefaultMaxAvgLatency,
	}
}

// Validate reports malformed thresholds.
func (t Thresholds) Validate() error {
	if t.MinSuccessRatePercent < 0 || t.MinSuccessRatePercent > 100 {
		return fmt.Errorf("minimum success rate must be between 0 and 100, got %g", t.MinSuccessRatePercent)
	}
	if t.MaxAvgLatency < 0 {
		return fmt.Errorf("maximum average latency cannot be negative, got %s", t.MaxAvgLatency)
	}
	for _, expr := range t.Checks {
		if _, err := ParseCheck(expr); err != nil {
			return err
		}
	}
	return nil
}

// Severity tells whether a reason fails the verdict.
type Severity string

const (
	// SeverityFail marks a violated hard gate.
	SeverityFail Severity = "fail"
	// SeverityAdvisory marks a warning that does not affect the outcome.
	SeverityAdvisory Severity = "advisory"
)

// Reason explains one violated threshold.
type Reason struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Check    string   `json:"check" yaml:"check"`
	Message  string   `json:"message" yaml:"message"`
}

// Verdict is the judgment for one batch.
type Verdict struct {
	Passed  bool     `json:"passed" yaml:"passed"`
	Reasons []Reason `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// Messages returns the reason messages in order.
func (v Verdict) Messages() []string {
	msgs := make([]string, 0, len(v.Reasons))
	for _, r := range v.Reasons {
		msgs = append(msgs, r.Message)
	}
	return msgs
}

// Failures returns the reasons that failed the verdict.
func (v Verdict) Failures() []Reason {
	return v.filter(SeverityFail)
}

// Advisories returns the reasons that did not affect the verdict.
func (v Verdict) Advisories() []Reason {
	return v.filter(SeverityAdvisory)
}

func (v Verdict) filter(s Severity) []Reason {
	var out []Reason
	for _, r := range v.Reasons {
		if r.Severity == s {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate judges stats against t.
//
// Reasons are ordered: the success-rate failure, then the average-latency
// advisory, then failing check expressions in configuration order.
func Evaluate(stats *metrics.AggregateStats, t Thresholds) Verdict {
	v := Verdict{Passed: stats.SuccessRate >= t.MinSuccessRatePercent}

	if !v.Passed {
		v.Reasons = append(v.Reasons, Reason{
			Severity: SeverityFail,
			Check:    "success_rate",
			Message: fmt.Sprintf("success rate %.2f%% is below the minimum of %.2f%% (%d of %d requests failed)",
				stats.SuccessRate, t.MinSuccessRatePercent, stats.FailedRequests, stats.TotalRequests),
		})
	}

	if t.MaxAvgLatency > 0 && stats.AvgLatency > t.MaxAvgLatency {
		v.Reasons = append(v.Reasons, Reason{
			Severity: SeverityAdvisory,
			Check:    "avg_latency",
			Message: fmt.Sprintf("average latency %.3fs exceeds %.3fs",
				stats.AvgLatency.Seconds(), t.MaxAvgLatency.Seconds()),
		})
	}

	for _, expr := range t.Checks {
		if reason, failed := evaluateCheck(expr, stats); failed {
			v.Reasons = append(v.Reasons, reason)
		}
	}

	return v
}

func evaluateCheck(expr string, stats *metrics.AggregateStats) (Reason, bool) {
	reason := Reason{Severity: SeverityAdvisory, Check: expr}

	c, err := ParseCheck(expr)
	if err != nil {
		reason.Message = fmt.Sprintf("check %q could not be evaluated: %v", expr, err)
		return reason, true
	}

	if c.Evaluate(stats) {
		return reason, false
	}
	reason.Message = fmt.Sprintf("check %q failed: %s is %s", expr, c.Metric, c.actual(stats))
	return reason, true
}
