package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/journal"
	"github.com/roach88/graphcache/internal/localread"
	"github.com/roach88/graphcache/internal/schema"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Journal  []journal.Entry // Dispatches for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Journal) > 0 {
		fmt.Fprintf(&buf, "\nDispatches:\n")
		for _, entry := range e.Journal {
			if entry.IsError {
				fmt.Fprintf(&buf, "  [%d] %s error: %s\n", entry.Seq, entry.OperationID, entry.Error)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", entry.Seq, entry.OperationID, entry.Payload)
			}
		}
	}

	return buf.String()
}

// assertEntity checks that the entity is cached and contains the expected
// fields (subset match).
func assertEntity(result *Result, assertion Assertion) error {
	ref, _ := ir.ParseRefKey(assertion.Entity)
	rec, ok := result.Cache.Resolve(ref)
	if !ok {
		return &AssertionError{
			Type:     AssertEntity,
			Expected: fmt.Sprintf("entity %s to be cached", assertion.Entity),
			Actual:   "not found in cache",
			Journal:  result.Journal,
		}
	}

	for _, key := range sortedKeys(assertion.Expect) {
		actual, exists := rec[key]
		if !exists {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("%s field %q to exist", assertion.Entity, key),
				Actual:   fmt.Sprintf("fields present: %v", ir.Object(rec).SortedKeys()),
				Journal:  result.Journal,
			}
		}
		equal, err := valuesEqual(actual, assertion.Expect[key])
		if err != nil {
			return fmt.Errorf("entity %s field %q: %w", assertion.Entity, key, err)
		}
		if !equal {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("%s.%s = %v", assertion.Entity, key, assertion.Expect[key]),
				Actual:   fmt.Sprintf("%s.%s = %v", assertion.Entity, key, ir.ToGo(actual)),
				Journal:  result.Journal,
			}
		}
	}
	return nil
}

// assertAbsent checks that the entity is not cached.
func assertAbsent(result *Result, assertion Assertion) error {
	ref, _ := ir.ParseRefKey(assertion.Entity)
	if rec, ok := result.Cache.Resolve(ref); ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("entity %s not to be cached", assertion.Entity),
			Actual:   fmt.Sprintf("cached as %v", ir.ToGo(ir.Object(rec))),
			Journal:  result.Journal,
		}
	}
	return nil
}

// assertLastError checks the final error state. An empty Contains expects
// no error.
func assertLastError(result *Result, assertion Assertion) error {
	if assertion.Contains == "" {
		if result.LastError != "" {
			return &AssertionError{
				Type:     AssertLastError,
				Expected: "no error state",
				Actual:   result.LastError,
				Journal:  result.Journal,
			}
		}
		return nil
	}
	if !strings.Contains(result.LastError, assertion.Contains) {
		actual := result.LastError
		if actual == "" {
			actual = "no error state"
		}
		return &AssertionError{
			Type:     AssertLastError,
			Expected: fmt.Sprintf("error containing %q", assertion.Contains),
			Actual:   actual,
			Journal:  result.Journal,
		}
	}
	return nil
}

// assertDispatchCount checks the exact number of dispatches.
func assertDispatchCount(result *Result, assertion Assertion) error {
	if result.Dispatches != int64(assertion.Count) {
		return &AssertionError{
			Type:     AssertDispatchCount,
			Expected: fmt.Sprintf("%d dispatches", assertion.Count),
			Actual:   fmt.Sprintf("%d dispatches", result.Dispatches),
			Journal:  result.Journal,
		}
	}
	return nil
}

// assertRead runs a local read against the final cache and compares its
// data with Expect (exact match).
func assertRead(ctx context.Context, desc *schema.Descriptor, result *Result, assertion Assertion) error {
	params, err := objectFromYAML(assertion.Params)
	if err != nil {
		return fmt.Errorf("read params: %w", err)
	}

	var ex localread.Executor
	res, err := ex.Execute(ctx, desc, result.Cache, assertion.Document, params)
	if err != nil {
		return &AssertionError{
			Type:     AssertRead,
			Expected: "local read to succeed",
			Actual:   err.Error(),
		}
	}

	equal, err := valuesEqual(res.Data, assertion.Expect)
	if err != nil {
		return fmt.Errorf("read expect: %w", err)
	}
	if !equal {
		return &AssertionError{
			Type:     AssertRead,
			Expected: fmt.Sprintf("%v", assertion.Expect),
			Actual:   fmt.Sprintf("%v", ir.ToGo(res.Data)),
			Journal:  result.Journal,
		}
	}
	return nil
}

// valuesEqual compares a cached value with a YAML-decoded expectation.
// References compare equal to their "Type:ID" key.
func valuesEqual(actual ir.Value, expected any) (bool, error) {
	exp, err := valueFromYAML(expected)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(ir.ToGo(actual), ir.ToGo(exp)), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Schema *schema.Descriptor
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the schema for read assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEntity:
			err = assertEntity(result, assertion)
		case AssertAbsent:
			err = assertAbsent(result, assertion)
		case AssertLastError:
			err = assertLastError(result, assertion)
		case AssertDispatchCount:
			err = assertDispatchCount(result, assertion)
		case AssertRead:
			if actx == nil || actx.Schema == nil {
				err = fmt.Errorf("assertion[%d]: read requires a schema", i)
			} else {
				err = assertRead(actx.Ctx, actx.Schema, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
