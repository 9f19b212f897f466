package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	lghttp "github.com/wesleyorama2/loadgate/internal/http"
	"github.com/wesleyorama2/loadgate/internal/loadtest"
	"github.com/wesleyorama2/loadgate/internal/loadtest/config"
	"github.com/wesleyorama2/loadgate/internal/loadtest/output"
	"github.com/wesleyorama2/loadgate/internal/loadtest/runner"
	"github.com/wesleyorama2/loadgate/internal/loadtest/telemetry"
	"github.com/wesleyorama2/loadgate/internal/loadtest/verdict"
)

const defaultBaseURL = "http://localhost:8000"

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test",
		Long: `Run a load test and exit non-zero when any batch misses its success-rate gate.

Default plan (GET /health, then POST /predict):
  loadgate run --url http://localhost:8000 --requests 100 --concurrency 10

Single batch (--endpoint replaces the default plan, health check included,
with one batch; it does not just retarget the POST /predict batch):
  loadgate run --url https://api.example.com --endpoint /predict \
    --method POST --body '{"user_id": 1, "viewed_products": [1, 2, 3]}'

Plan file:
  loadgate run --config plan.yaml --format junit --output report.xml`,
		Args: cobra.NoArgs,
		RunE: runLoadTest,
	}

	f := runCmd.Flags()
	f.StringP("config", "c", "", "Plan file (YAML or JSON)")
	f.StringP("url", "u", defaultBaseURL, "Base URL of the service under test")
	f.StringP("endpoint", "e", "", "Run a single batch against this path instead of the default two-batch plan")
	f.StringP("method", "X", "", "HTTP method for a single-batch run: GET or POST (default GET, or POST with --body)")
	f.StringP("body", "d", "", "JSON request body for a single-batch run")
	f.IntP("requests", "n", config.DefaultRequests, "Requests per batch")
	f.IntP("concurrency", "C", config.DefaultConcurrency, "Maximum requests in flight")
	f.StringP("timeout", "t", "10s", "Per-request timeout (e.g. 10s, 500ms, or seconds)")
	f.Float64("min-success-rate", verdict.DefaultMinSuccessRate, "Minimum success rate in percent; below it the run fails")
	f.Float64("max-avg-latency", verdict.DefaultMaxAvgLatency.Seconds(), "Average latency in seconds above which a warning is reported (0 disables)")
	f.StringArray("check", nil, `Advisory check, repeatable (e.g. "p95 < 500ms", "rps >= 50")`)
	f.StringP("format", "f", string(output.FormatText), "Report format: text, json, yaml, junit")
	f.StringP("output", "o", "", "Write the report to a file instead of stdout")
	f.BoolP("quiet", "q", false, "Print only PASSED or FAILED in text format")
	f.Bool("no-color", false, "Disable colored output")
	f.BoolP("verbose", "v", false, "Enable debug logging on stderr")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")

	return runCmd
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	verbose, _ := flags.GetBool("verbose")
	quiet, _ := flags.GetBool("quiet")
	noColor, _ := flags.GetBool("no-color")
	formatName, _ := flags.GetString("format")
	outputPath, _ := flags.GetString("output")
	metricsAddr, _ := flags.GetString("metrics-addr")

	format, err := output.ParseFormat(formatName)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	logger, err := newLogger(verbose)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("failed to create logger: %w", err)}
	}
	defer logger.Sync() //nolint:errcheck

	plan, err := buildPlan(cmd)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	if err := plan.ValidateSettings(); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("failed to create output file: %w", err)}
		}
		defer file.Close()
		out = file
	}

	collector := telemetry.NewCollector()
	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr, collector, logger)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		defer stop()
	}

	transport := lghttp.NewTransport(transportConfig(plan))
	client := lghttp.NewClient(
		lghttp.WithBaseURL(plan.Settings.BaseURL),
		lghttp.WithTransport(transport),
		lghttp.WithHeader("User-Agent", "loadgate/"+version),
	)
	defer client.CloseIdleConnections()

	executor := loadtest.NewHTTPExecutor(client, loadtest.WithExecutorLogger(logger))
	scheduler := loadtest.NewScheduler(executor,
		loadtest.WithObserver(collector),
		loadtest.WithSchedulerLogger(logger))

	name := plan.Name
	if name == "" {
		name = "loadgate"
	}
	r := runner.New(scheduler,
		runner.WithName(name),
		runner.WithThresholds(plan.VerdictThresholds()),
		runner.WithLogger(logger))

	// Interrupts stop batches that have not started; the running batch finishes.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	var console *output.Console
	if format == output.FormatText {
		console = output.NewConsole(output.ConsoleConfig{
			Writer:  out,
			Quiet:   quiet,
			NoColor: noColor || outputPath != "",
		})
		console.PrintHeader(name, plan.Settings.BaseURL, len(plan.Batches))
	}

	result := r.Run(ctx, plan.BatchSpecs())

	if console != nil {
		console.PrintSummary(result)
	} else if err := output.WriteReport(out, format, result); err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("failed to write report: %w", err)}
	}

	logger.Debug("run complete",
		zap.String("run", result.ID),
		zap.Int64("maxInFlight", collector.MaxInFlight()),
		zap.Int("exitCode", result.ExitCode()))

	if code := result.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// buildPlan assembles the plan from --config or from the quick-mode flags.
// Flags given explicitly override the plan file.
func buildPlan(cmd *cobra.Command) (*config.Plan, error) {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")
	baseURL, _ := flags.GetString("url")
	endpoint, _ := flags.GetString("endpoint")
	methodName, _ := flags.GetString("method")
	body, _ := flags.GetString("body")
	requests, _ := flags.GetInt("requests")
	concurrency, _ := flags.GetInt("concurrency")
	timeoutStr, _ := flags.GetString("timeout")

	timeout, err := config.ParseDurationString(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --timeout: %w", err)
	}

	var plan *config.Plan
	switch {
	case configFile != "":
		plan, err = config.LoadPlan(configFile)
		if err != nil {
			return nil, err
		}
		if flags.Changed("url") {
			plan.Settings.BaseURL = baseURL
		}
		if flags.Changed("timeout") {
			plan.Settings.Timeout = config.Duration(timeout)
		}
	case endpoint != "":
		method := strings.ToUpper(methodName)
		if method == "" {
			method = string(loadtest.MethodGet)
			if body != "" {
				method = string(loadtest.MethodPost)
			}
		}
		if _, err := loadtest.ParseMethod(method); err != nil {
			return nil, err
		}

		var payload interface{}
		if body != "" {
			payload, err = config.ParsePayload(body)
			if err != nil {
				return nil, fmt.Errorf("invalid --body: %w", err)
			}
		}

		plan = &config.Plan{
			Settings: config.Settings{BaseURL: baseURL, Timeout: config.Duration(timeout)},
			Batches: []config.BatchConfig{{
				Endpoint:    endpoint,
				Method:      method,
				Payload:     payload,
				Requests:    requests,
				Concurrency: concurrency,
			}},
		}
	default:
		plan = config.DefaultPlan(baseURL, requests, concurrency)
		plan.Settings.Timeout = config.Duration(timeout)
	}

	if err := applyThresholdFlags(cmd, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func applyThresholdFlags(cmd *cobra.Command, plan *config.Plan) error {
	flags := cmd.Flags()
	fromFile := plan.Thresholds != nil
	if plan.Thresholds == nil {
		plan.Thresholds = &config.ThresholdsConfig{}
	}

	if !fromFile || flags.Changed("min-success-rate") {
		rate, _ := flags.GetFloat64("min-success-rate")
		plan.Thresholds.MinSuccessRate = &rate
	}
	if !fromFile || flags.Changed("max-avg-latency") {
		seconds, _ := flags.GetFloat64("max-avg-latency")
		if seconds < 0 {
			return errors.New("--max-avg-latency cannot be negative")
		}
		d := config.Duration(time.Duration(seconds * float64(time.Second)))
		plan.Thresholds.MaxAvgLatency = &d
	}
	if checks, _ := flags.GetStringArray("check"); len(checks) > 0 {
		plan.Thresholds.Checks = append(plan.Thresholds.Checks, checks...)
	}
	return nil
}

// transportConfig sizes the connection pool for the widest batch.
func transportConfig(plan *config.Plan) lghttp.TransportConfig {
	widest := 1
	for _, b := range plan.Batches {
		if b.Concurrency > widest {
			widest = b.Concurrency
		}
	}
	cfg := lghttp.DefaultTransportConfig(widest)
	cfg.InsecureSkipVerify = plan.Settings.InsecureSkipVerify
	return cfg
}

// serveMetrics starts the Prometheus endpoint and returns a function that
// shuts it down.
func serveMetrics(addr string, collector *telemetry.Collector, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
