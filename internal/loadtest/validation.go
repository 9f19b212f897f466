package loadtest

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrorOrNil returns the collection as an error, or nil when it is empty.
func (e *ValidationErrors) ErrorOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Validate checks the request description before any network activity.
func (r *RequestSpec) Validate() error {
	errs := &ValidationErrors{}
	r.validate("request", errs)
	return errs.ErrorOrNil()
}

func (r *RequestSpec) validate(prefix string, errs *ValidationErrors) {
	if strings.TrimSpace(r.Endpoint) == "" {
		errs.Add(prefix+".endpoint", "endpoint is required")
	}

	switch r.Method {
	case MethodGet, MethodPost:
	case "":
		errs.Add(prefix+".method", "method is required")
	default:
		errs.Add(prefix+".method", fmt.Sprintf("unsupported method: %s", r.Method))
	}

	if r.Payload != nil && r.Method != "" && !r.Method.AllowsBody() {
		errs.Add(prefix+".payload", fmt.Sprintf("payload is not allowed for %s requests", r.Method))
	}

	if r.Timeout <= 0 {
		errs.Add(prefix+".timeout", "timeout must be greater than 0")
	}
}

// Validate checks the batch before it is scheduled.
func (b *BatchSpec) Validate() error {
	errs := &ValidationErrors{}

	if b.TotalRequests < 1 {
		errs.Add("totalRequests", "totalRequests must be greater than 0")
	}
	if b.Concurrency < 1 {
		errs.Add("concurrency", "concurrency must be greater than 0")
	}
	b.Request.validate("request", errs)

	return errs.ErrorOrNil()
}
