package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/runtime"
)

// Scenario drives the runtime against scripted transport replies and checks
// the resulting cache.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of the CUE schema definition, relative to the
	// scenario file.
	Schema string `yaml:"schema"`

	// Endpoint defaults to /graphql.
	Endpoint string `yaml:"endpoint,omitempty"`

	// InitialCache seeds the store: type name -> id -> record.
	// A {"__ref": "Type:ID"} object stands for a reference.
	InitialCache map[string]map[string]map[string]any `yaml:"initial_cache,omitempty"`

	// Responses script the transport, keyed by document.
	Responses []Response `yaml:"responses,omitempty"`

	// Steps are performed in order; each completes before the next starts.
	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// Response is one scripted transport reply. Exactly one of Data, Errors or
// Error describes the outcome; Data and Errors together make a partial
// response. Replies for the same document are consumed in order and the
// last one repeats.
type Response struct {
	Document string          `yaml:"document"`
	Data     map[string]any  `yaml:"data,omitempty"`
	Errors   []ResponseError `yaml:"errors,omitempty"`

	// Error fails the request at the transport.
	Error string `yaml:"error,omitempty"`
}

// ResponseError is a GraphQL error entry.
type ResponseError struct {
	Message string `yaml:"message"`
	Path    []any  `yaml:"path,omitempty"`
}

// Step performs one query or mutation.
type Step struct {
	Query    string         `yaml:"query,omitempty"`
	Mutation string         `yaml:"mutation,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`

	// Append and Remove are list updates in Type:idField:listField:valueField
	// form. UpdateCache lists them in long form. Mutations only.
	Append      []string             `yaml:"append,omitempty"`
	Remove      []string             `yaml:"remove,omitempty"`
	UpdateCache []runtime.ListUpdate `yaml:"update_cache,omitempty"`

	// Files are sent with a mutation.
	Files []FileStep `yaml:"files,omitempty"`
}

// FileStep is an inline upload.
type FileStep struct {
	Field   string `yaml:"field,omitempty"`
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "entity": Entity exists and its fields match Expect (subset)
	// - "absent": Entity is not cached
	// - "last_error": Error state contains Contains, or is empty when
	//   Contains is empty
	// - "dispatch_count": Exactly Count dispatches were made
	// - "read": A local read of Document returns Expect
	Type string `yaml:"type"`

	// Entity is "Type:ID" (entity, absent).
	Entity string `yaml:"entity,omitempty"`

	// Expect holds expected fields (entity) or data (read).
	Expect map[string]any `yaml:"expect,omitempty"`

	Contains string `yaml:"contains,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Document and Params describe a local read (read).
	Document string         `yaml:"document,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
}

// Assertion type constants.
const (
	AssertEntity        = "entity"
	AssertAbsent        = "absent"
	AssertLastError     = "last_error"
	AssertDispatchCount = "dispatch_count"
	AssertRead          = "read"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
// The schema path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, r := range s.Responses {
		if strings.TrimSpace(r.Document) == "" {
			return fmt.Errorf("responses[%d]: document is required", i)
		}
		if r.Data == nil && len(r.Errors) == 0 && r.Error == "" {
			return fmt.Errorf("responses[%d]: one of data, errors or error is required", i)
		}
		if r.Error != "" && (r.Data != nil || len(r.Errors) > 0) {
			return fmt.Errorf("responses[%d]: error cannot be combined with data or errors", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	switch {
	case step.Query != "" && step.Mutation != "":
		return fmt.Errorf("steps[%d]: query and mutation are mutually exclusive", index)
	case step.Query == "" && step.Mutation == "":
		return fmt.Errorf("steps[%d]: query or mutation is required", index)
	}

	isQuery := step.Query != ""
	if isQuery && (len(step.Append) > 0 || len(step.Remove) > 0 || len(step.UpdateCache) > 0) {
		return fmt.Errorf("steps[%d]: list updates apply to mutations only", index)
	}
	if isQuery && len(step.Files) > 0 {
		return fmt.Errorf("steps[%d]: files apply to mutations only", index)
	}
	if _, err := step.listUpdates(); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	return nil
}

// listUpdates gathers Append, Remove and UpdateCache in that order.
func (s *Step) listUpdates() ([]runtime.ListUpdate, error) {
	var out []runtime.ListUpdate
	for _, expr := range s.Append {
		u, err := runtime.ParseListUpdate(expr, false)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	for _, expr := range s.Remove {
		u, err := runtime.ParseListUpdate(expr, true)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return append(out, s.UpdateCache...), nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEntity:
		if _, ok := ir.ParseRefKey(a.Entity); !ok {
			return fmt.Errorf("assertions[%d]: entity must be Type:ID for entity, got %q", index, a.Entity)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for entity", index)
		}
	case AssertAbsent:
		if _, ok := ir.ParseRefKey(a.Entity); !ok {
			return fmt.Errorf("assertions[%d]: entity must be Type:ID for absent, got %q", index, a.Entity)
		}
	case AssertLastError:
	case AssertDispatchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for dispatch_count", index)
		}
	case AssertRead:
		if strings.TrimSpace(a.Document) == "" {
			return fmt.Errorf("assertions[%d]: document is required for read", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for read", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
