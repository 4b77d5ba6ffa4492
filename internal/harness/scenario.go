package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
)

// Scenario is a filter conformance case loaded from YAML.
type Scenario struct {
	// Name identifies the scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description is a human-readable explanation of what is tested.
	Description string `yaml:"description"`

	// Entity is the catalog entity the filter is applied to.
	Entity string `yaml:"entity"`

	// Filter is the client filter, kept as a node so key order survives.
	Filter yaml.Node `yaml:"filter"`

	// Page bounds the executed search. Omitted means the default page.
	Page *Page `yaml:"page,omitempty"`

	// Assertions are evaluated after the filter is compiled.
	Assertions []Assertion `yaml:"assertions"`
}

// Page is the limit and offset a scenario searches with.
type Page struct {
	Limit  uint64 `yaml:"limit"`
	Offset uint64 `yaml:"offset"`
}

// Assertion checks one property of a scenario's outcome.
type Assertion struct {
	// Type selects the check; see the Assert constants.
	Type string `yaml:"type"`

	// Field, Code and Message match the rejection (type: rejected).
	Field   string `yaml:"field,omitempty"`
	Code    string `yaml:"code,omitempty"`
	Message string `yaml:"message,omitempty"`

	// SQL is the exact rendered statement (type: sql).
	SQL string `yaml:"sql,omitempty"`

	// IDs are the primary keys returned, in order (type: rows).
	IDs []int64 `yaml:"ids,omitempty"`

	// Call is one trace line that must appear (type: trace_contains).
	Call string `yaml:"call,omitempty"`

	// Count is the number of rows returned (type: row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion types
const (
	AssertAccepted      = "accepted"
	AssertRejected      = "rejected"
	AssertSQL           = "sql"
	AssertRows          = "rows"
	AssertRowCount      = "row_count"
	AssertTraceContains = "trace_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ErrNoScenarios means a directory held no scenario files.
var ErrNoScenarios = errors.New("no scenario files found")

// Discover returns the scenario files (*.yaml, *.yml) in dir, sorted.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoScenarios, dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Filters converts the scenario's filter into IR. An absent filter is
// empty. A filter nested past maxDepth is reported the same way the
// compiler reports it.
func (s *Scenario) Filters(maxDepth int) (ir.IRObject, error) {
	if s.Filter.Kind == 0 {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromYAMLNode(&s.Filter, maxDepth+1)
	if errors.Is(err, ir.ErrTooDeep) {
		return nil, filter.DepthExceeded(maxDepth)
	}
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	switch obj := v.(type) {
	case ir.IRObject:
		return obj, nil
	case ir.IRNull:
		return ir.IRObject{}, nil
	default:
		return nil, fmt.Errorf("filter must be a mapping, got %s", ir.TypeName(v))
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Entity == "" {
		return fmt.Errorf("entity is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAccepted:
	case AssertRejected:
		if a.Field == "" && a.Code == "" && a.Message == "" {
			return fmt.Errorf("assertions[%d]: rejected needs field, code or message", index)
		}
	case AssertSQL:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for sql", index)
		}
	case AssertRows:
		// an empty ids list asserts no rows
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
