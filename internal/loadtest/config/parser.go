package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

//go:embed plan.schema.json
var planSchemaJSON string

var (
	planSchemaOnce sync.Once
	planSchema     *jsonschema.Schema
	planSchemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	planSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("plan.schema.json", strings.NewReader(planSchemaJSON)); err != nil {
			planSchemaErr = fmt.Errorf("invalid plan schema: %w", err)
			return
		}
		planSchema, planSchemaErr = compiler.Compile("plan.schema.json")
	})
	return planSchema, planSchemaErr
}

// SchemaError lists the structural problems found in a plan file.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	if len(e.Problems) == 1 {
		return "plan does not match schema: " + e.Problems[0]
	}
	return fmt.Sprintf("plan does not match schema:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// LoadPlan loads a test plan from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	return ParsePlan(data, path)
}

// ParsePlan checks data against the plan schema and decodes it.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParsePlan(data []byte, path string) (*Plan, error) {
	isJSON := strings.ToLower(filepath.Ext(path)) == ".json"

	doc, err := genericDocument(data, isJSON)
	if err != nil {
		return nil, err
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var plan Plan
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&plan); err != nil {
			return nil, fmt.Errorf("failed to parse JSON plan: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
		}
	}

	return &plan, nil
}

// genericDocument decodes data into plain JSON values for schema checking.
// YAML is round-tripped through encoding/json so numbers and maps have the
// shapes the validator expects.
func genericDocument(data []byte, isJSON bool) (interface{}, error) {
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var doc interface{}
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON plan: %w", err)
		}
		return doc, nil
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
	}
	if raw == nil {
		return nil, errors.New("plan file is empty")
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML plan: %w", err)
	}
	return doc, nil
}

func validateSchema(doc interface{}) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	schemaErr := &SchemaError{}
	collectSchemaProblems(verr, schemaErr)
	if len(schemaErr.Problems) == 0 {
		schemaErr.Problems = append(schemaErr.Problems, verr.Error())
	}
	return schemaErr
}

// collectSchemaProblems flattens the leaf causes of a validation error.
func collectSchemaProblems(err *jsonschema.ValidationError, out *SchemaError) {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		out.Problems = append(out.Problems, fmt.Sprintf("%s: %s", location, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectSchemaProblems(cause, out)
	}
}

// ParsePayload checks an inline JSON request body and returns it unchanged,
// so numbers reach the target exactly as written.
func ParsePayload(s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("payload is not valid JSON: %s", s)
	}
	return json.RawMessage(s), nil
}
