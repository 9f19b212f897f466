package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/loadgate/internal/loadtest/runner"
	"github.com/wesleyorama2/loadgate/internal/loadtest/verdict"
)

// maxListedErrors caps the distinct errors shown per batch.
const maxListedErrors = 5

const ruleChar = "━"

// Console renders human-readable run summaries.
type Console struct {
	writer    io.Writer
	scheme    *ColorScheme
	useColors bool
	quiet     bool
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
}

// NewConsole creates a console writer. Colors are used only on a color
// capable terminal unless forced.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	useColors := !config.NoColor && (config.ForceColors || (isTerminal(config.Writer) && supportsColors()))

	scheme := NoColorScheme()
	if useColors {
		scheme = DefaultColorScheme().forceColors()
	}

	return &Console{
		writer:    config.Writer,
		scheme:    scheme,
		useColors: useColors,
		quiet:     config.Quiet,
	}
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return checkIsTerminal(f)
	}
	return false
}

// supportsColors checks if the terminal supports colors.
func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if runtime.GOOS == "windows" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// PrintHeader prints the plan banner before any batch runs.
func (c *Console) PrintHeader(name, baseURL string, batches int) {
	if c.quiet {
		return
	}

	line := strings.Repeat(ruleChar, 56)
	c.writeln(c.scheme.Rule.Sprint(line))
	c.writeln(c.scheme.Title.Sprintf("%s - %s", name, baseURL))
	c.writeln(c.scheme.Dim.Sprintf("%d batch(es), sequential", batches))
	c.writeln(c.scheme.Rule.Sprint(line))
	c.writeln("")
}

// PrintSummary prints every batch followed by the overall result.
func (c *Console) PrintSummary(result *runner.RunResult) {
	if c.quiet {
		if result.Passed {
			c.writeln(c.scheme.Pass.Sprint("PASSED"))
		} else {
			c.writeln(c.scheme.Fail.Sprint("FAILED"))
		}
		return
	}

	for _, b := range result.Batches {
		c.printBatch(b)
	}

	line := strings.Repeat(ruleChar, 56)
	status := c.scheme.Pass.Sprint("PASSED " + iconPass)
	if !result.Passed {
		status = c.scheme.Fail.Sprint("FAILED " + iconFail)
	}

	c.writeln(c.scheme.Rule.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s (%s)", c.scheme.Title.Sprint(result.Name), status, formatDuration(result.Duration())))
	c.writeln(c.scheme.Rule.Sprint(line))
}

func (c *Console) printBatch(b *runner.BatchResult) {
	spec := b.Spec.Request
	c.writeln(c.scheme.Title.Sprintf("%s", b.Name) + c.scheme.Dim.Sprintf("  %s %s", spec.Method, spec.Endpoint))

	if b.Err != nil {
		c.writeln(fmt.Sprintf("  %s %s", c.scheme.Fail.Sprint(iconFail+" configuration error:"), b.Err.Error()))
		c.writeln("")
		return
	}

	s := b.Stats
	c.writeln(fmt.Sprintf("  Requests:      %s (concurrency %d)", c.scheme.Value.Sprint(formatNumber(int64(s.TotalRequests))), b.Spec.Concurrency))
	c.writeln(fmt.Sprintf("  Successful:    %s", c.scheme.Value.Sprint(formatNumber(int64(s.SuccessfulRequests)))))
	c.writeln(fmt.Sprintf("  Failed:        %s (http %d, transport %d)",
		c.rateColor(s.SuccessRate).Sprint(formatNumber(int64(s.FailedRequests))), s.HTTPFailures, s.TransportFailures))
	c.writeln(fmt.Sprintf("  Success Rate:  %s", c.rateColor(s.SuccessRate).Sprintf("%.2f%%", s.SuccessRate)))
	c.writeln(fmt.Sprintf("  Elapsed:       %s", c.scheme.Value.Sprint(formatDuration(s.TotalElapsed))))
	c.writeln(fmt.Sprintf("  Throughput:    %s", c.scheme.Value.Sprintf("%.2f req/s", s.RequestsPerSecond)))

	if s.SuccessfulRequests > 0 {
		c.writeln(c.scheme.Label.Sprint("  Latency (successful requests):"))
		c.writeln(fmt.Sprintf("    Avg:  %-10s Median: %s", formatDurationShort(s.AvgLatency), formatDurationShort(s.MedianLatency)))
		c.writeln(fmt.Sprintf("    Min:  %-10s Max:    %s", formatDurationShort(s.MinLatency), formatDurationShort(s.MaxLatency)))
		c.writeln(fmt.Sprintf("    P90:  %-10s P95:    %-10s P99: %s",
			formatDurationShort(s.P90Latency), formatDurationShort(s.P95Latency), formatDurationShort(s.P99Latency)))
	}

	if len(s.StatusCodes) > 0 {
		c.writeln(fmt.Sprintf("  TTFB:          avg %s, p95 %s",
			formatDurationShort(s.AvgTimeToFirstByte), formatDurationShort(s.P95TimeToFirstByte)))
		c.writeln(fmt.Sprintf("  Connections:   %d new, avg setup %s", s.NewConnections, formatDurationShort(s.AvgConnectTime)))
		c.writeln(fmt.Sprintf("  Status Codes:  %s", formatStatusCodes(s.StatusCodes)))
	}

	if len(s.DistinctErrors) > 0 {
		c.writeln(c.scheme.Label.Sprintf("  Errors (%d distinct):", len(s.DistinctErrors)))
		for i, e := range s.DistinctErrors {
			if i == maxListedErrors {
				c.writeln(c.scheme.Dim.Sprintf("    ... and %d more", len(s.DistinctErrors)-maxListedErrors))
				break
			}
			c.writeln(fmt.Sprintf("    - %s", e))
		}
	}

	if b.Verdict != nil {
		c.printVerdict(b.Verdict)
	}
	c.writeln("")
}

func (c *Console) printVerdict(v *verdict.Verdict) {
	if v.Passed {
		c.writeln(fmt.Sprintf("  %s", c.scheme.Pass.Sprint(iconPass+" passed")))
	}
	for _, r := range v.Reasons {
		switch r.Severity {
		case verdict.SeverityFail:
			c.writeln(fmt.Sprintf("  %s %s", c.scheme.Fail.Sprint(iconFail), r.Message))
		default:
			c.writeln(fmt.Sprintf("  %s %s", c.scheme.Warn.Sprint(iconWarn), r.Message))
		}
	}
}

func (c *Console) rateColor(rate float64) *color.Color {
	switch {
	case rate >= 99:
		return c.scheme.Pass
	case rate >= 95:
		return c.scheme.Warn
	default:
		return c.scheme.Fail
	}
}

// ColorsEnabled reports whether output is colorized.
func (c *Console) ColorsEnabled() bool {
	return c.useColors
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a latency in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
