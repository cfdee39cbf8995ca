package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../../testdata/scenarios"

// TestDemoScenarios runs the scenarios shipped in testdata and compares
// each journal with its golden file.
func TestDemoScenarios(t *testing.T) {
	tests := []struct {
		name       string
		dispatches int64
		lastError  string
	}{
		{name: "query_user", dispatches: 1},
		{name: "create_comment", dispatches: 2},
		{name: "delete_comment", dispatches: 2},
		{name: "transport_failure", dispatches: 1, lastError: "transport /graphql: network down"},
		{name: "cascade_isolation", dispatches: 3},
		{name: "error_recovery", dispatches: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join(scenariosDir, tt.name+".yaml"))
			require.NoError(t, err)
			assert.Equal(t, tt.name, scenario.Name)

			result, err := RunWithGolden(t, filepath.Join(scenariosDir, "golden"), scenario)
			require.NoError(t, err)

			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.dispatches, result.Dispatches)
			assert.Equal(t, tt.lastError, result.LastError)
		})
	}
}

func TestDemoScenarios_CascadeErrorJournaled(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenariosDir, "cascade_isolation.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Journal, 3)

	assert.False(t, result.Journal[0].IsError)
	assert.True(t, result.Journal[1].IsError)
	assert.Contains(t, result.Journal[1].Error, "cascade update 0 (Post:10)")
	assert.False(t, result.Journal[2].IsError)
}
