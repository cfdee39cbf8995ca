package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/graphcache/internal/ir"
	"github.com/roach88/graphcache/internal/journal"
)

// TraceSnapshot captures the dispatch journal and final cache of a scenario.
type TraceSnapshot struct {
	ScenarioName string
	Journal      []journal.Entry
	Cache        ir.EntityTable
	LastError    string
}

// toCanonical converts the snapshot to an ir.Object for canonical JSON.
// Entry payloads are embedded as JSON values rather than strings.
func (s *TraceSnapshot) toCanonical() (ir.Object, error) {
	entries := make(ir.Array, len(s.Journal))
	for i, e := range s.Journal {
		payload, err := ir.DecodeJSON([]byte(e.Payload))
		if err != nil {
			return nil, fmt.Errorf("entry %d payload: %w", e.Seq, err)
		}
		entry := ir.Object{
			"seq":          ir.Int(e.Seq),
			"operation_id": ir.String(e.OperationID),
			"kind":         ir.String(e.Kind),
			"is_error":     ir.Bool(e.IsError),
			"payload":      payload,
			"digest":       ir.String(e.Digest),
		}
		if e.Error != "" {
			entry["error"] = ir.String(e.Error)
		}
		entries[i] = entry
	}

	snapshot := ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"journal":       entries,
		"cache":         s.Cache.Object(),
	}
	if s.LastError != "" {
		snapshot["last_error"] = ir.String(s.LastError)
	}
	return snapshot, nil
}

// Marshal renders the snapshot as canonical JSON followed by a newline.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	obj, err := s.toCanonical()
	if err != nil {
		return nil, err
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SnapshotOf builds the snapshot for a scenario result.
func SnapshotOf(name string, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName: name,
		Journal:      result.Journal,
		Cache:        result.Cache,
		LastError:    result.LastError,
	}
}

// RunWithGolden executes a scenario and compares its trace against
// {dir}/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, dir string, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, dir, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against {dir}/{scenarioName}.golden.
func AssertGolden(t *testing.T, dir, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotOf(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
