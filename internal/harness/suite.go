package harness

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against scenario file names without extension.
	Filter string

	// Update rewrites golden files instead of comparing against them.
	Update bool

	// Logger receives runtime logs. Defaults to discarding them.
	Logger *slog.Logger
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// FindScenarios returns the .yaml and .yml files under dir in lexical order.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// RunSuite runs every scenario under dir.
//
// A scenario with a golden file passes when its assertions hold and its
// snapshot matches the golden byte for byte. Without a golden file only
// the assertions are checked.
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}

	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find scenarios: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	result := &SuiteResult{
		Scenarios: make([]ScenarioOutcome, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		outcome := runScenarioFile(file, opts.Update, logger)
		result.Scenarios = append(result.Scenarios, outcome)
		if outcome.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func runScenarioFile(file string, update bool, logger *slog.Logger) ScenarioOutcome {
	outcome := ScenarioOutcome{Name: filepath.Base(file), Path: file}

	scenario, err := LoadScenario(file)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return outcome
	}
	outcome.Name = scenario.Name

	result, err := RunWithLogger(scenario, logger)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return outcome
	}

	snapshot, err := SnapshotOf(scenario.Name, result).Marshal()
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("failed to marshal snapshot: %v", err)}
		return outcome
	}

	goldenPath := GoldenPath(file, scenario.Name)
	if update {
		if err := WriteGolden(goldenPath, snapshot); err != nil {
			outcome.Errors = []string{fmt.Sprintf("failed to update golden file: %v", err)}
			return outcome
		}
		outcome.GoldenUpdated = true
	} else if _, err := os.Stat(goldenPath); err == nil {
		match, err := CompareGolden(goldenPath, snapshot)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("golden comparison failed: %v", err)}
			return outcome
		}
		if !match {
			outcome.Errors = append(outcome.Errors, "trace does not match golden file (run with --update to regenerate)")
		}
	}

	outcome.Errors = append(outcome.Errors, result.Errors...)
	outcome.Pass = len(outcome.Errors) == 0
	return outcome
}

// GoldenPath returns golden/<name>.golden next to the scenario file.
func GoldenPath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// WriteGolden writes data to path, creating the directory.
func WriteGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// CompareGolden reports whether the golden file at path holds data.
func CompareGolden(path string, data []byte) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(golden, data), nil
}
