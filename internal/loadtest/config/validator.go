package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wesleyorama2/loadgate/internal/loadtest"
	"github.com/wesleyorama2/loadgate/internal/loadtest/verdict"
)

// Validate checks the whole plan, including every batch, and returns a
// *loadtest.ValidationErrors listing all problems.
func (p *Plan) Validate() error {
	errs := &loadtest.ValidationErrors{}
	p.validatePlan(errs)

	for i, spec := range p.BatchSpecs() {
		if err := spec.Validate(); err != nil {
			appendPrefixed(errs, fmt.Sprintf("batches[%d]", i), err)
		}
	}
	return errs.ErrorOrNil()
}

// ValidateSettings checks the plan-wide fields only. Problems confined to a
// single batch are left for that batch to report when it runs.
func (p *Plan) ValidateSettings() error {
	errs := &loadtest.ValidationErrors{}
	p.validatePlan(errs)
	return errs.ErrorOrNil()
}

func (p *Plan) validatePlan(errs *loadtest.ValidationErrors) {
	validateBaseURL(p.Settings.BaseURL, errs)

	if p.Settings.Timeout < 0 {
		errs.Add("settings.timeout", "timeout cannot be negative")
	}

	if len(p.Batches) == 0 {
		errs.Add("batches", "at least one batch is required")
	}

	if err := p.Thresholds.toThresholds().Validate(); err != nil {
		errs.Add("thresholds", err.Error())
	}
}

func validateBaseURL(raw string, errs *loadtest.ValidationErrors) {
	if raw == "" {
		errs.Add("settings.baseUrl", "baseUrl is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		errs.Add("settings.baseUrl", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("settings.baseUrl", fmt.Sprintf("unsupported scheme %q, expected http or https", u.Scheme))
	}
	if u.Host == "" {
		errs.Add("settings.baseUrl", "baseUrl must include a host")
	}
}

// appendPrefixed re-keys batch errors to the field names used in plan files.
func appendPrefixed(errs *loadtest.ValidationErrors, prefix string, err error) {
	switch e := err.(type) {
	case *loadtest.ValidationErrors:
		for _, ve := range e.Errors {
			errs.Add(prefix+"."+planField(ve.Field), ve.Message)
		}
	case *loadtest.ValidationError:
		errs.Add(prefix+"."+planField(e.Field), e.Message)
	default:
		errs.Add(prefix, err.Error())
	}
}

func planField(field string) string {
	if field == "totalRequests" {
		return "requests"
	}
	return strings.TrimPrefix(field, "request.")
}

// BatchSpecs converts the batches into scheduler input. Values are carried
// over as written; an unsupported method or a bad count is reported by
// BatchSpec.Validate. A string payload that is not valid JSON is sent as
// plain text.
func (p *Plan) BatchSpecs() []loadtest.BatchSpec {
	specs := make([]loadtest.BatchSpec, 0, len(p.Batches))
	for _, b := range p.Batches {
		method := loadtest.Method(strings.ToUpper(strings.TrimSpace(b.Method)))
		if method == "" {
			method = loadtest.MethodGet
		}

		payload := b.Payload
		if s, ok := payload.(string); ok {
			if decoded, err := ParsePayload(s); err == nil {
				payload = decoded
			}
		}

		specs = append(specs, loadtest.BatchSpec{
			Name: b.Name,
			Request: loadtest.RequestSpec{
				Endpoint: b.Endpoint,
				Method:   method,
				Payload:  payload,
				Headers:  mergeHeaders(p.Settings.Headers, b.Headers),
				Timeout:  b.Timeout.GetDuration(p.Settings.Timeout.GetDuration(loadtest.DefaultTimeout)),
			},
			TotalRequests: b.Requests,
			Concurrency:   b.Concurrency,
		})
	}
	return specs
}

// VerdictThresholds returns the plan thresholds with defaults applied.
func (p *Plan) VerdictThresholds() verdict.Thresholds {
	return p.Thresholds.toThresholds()
}

func (t *ThresholdsConfig) toThresholds() verdict.Thresholds {
	th := verdict.DefaultThresholds()
	if t == nil {
		return th
	}
	if t.MinSuccessRate != nil {
		th.MinSuccessRatePercent = *t.MinSuccessRate
	}
	if t.MaxAvgLatency != nil {
		th.MaxAvgLatency = time.Duration(*t.MaxAvgLatency)
	}
	th.Checks = append([]string(nil), t.Checks...)
	return th
}

func mergeHeaders(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// Default batch settings.
const (
	DefaultRequests    = 100
	DefaultConcurrency = 10
)

// DefaultPlan returns the smoke plan used when no plan file is given: a
// health check followed by a recommendation request.
func DefaultPlan(baseURL string, requests, concurrency int) *Plan {
	return &Plan{
		Name: "default",
		Settings: Settings{
			BaseURL: baseURL,
			Timeout: Duration(loadtest.DefaultTimeout),
		},
		Batches: []BatchConfig{
			{
				Name:        "health",
				Endpoint:    "/health",
				Method:      string(loadtest.MethodGet),
				Requests:    requests,
				Concurrency: concurrency,
			},
			{
				Name:     "predict",
				Endpoint: "/predict",
				Method:   string(loadtest.MethodPost),
				Payload: map[string]interface{}{
					"user_id":         1,
					"viewed_products": []interface{}{1, 2, 3},
				},
				Requests:    requests,
				Concurrency: concurrency,
			},
		},
	}
}
