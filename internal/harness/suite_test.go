package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	files, err := FindScenarios(scenariosDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 6)
	for _, f := range files {
		assert.Equal(t, ".yaml", filepath.Ext(f))
	}

	files, err = FindScenarios(scenariosDir, "*_comment")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "create_comment.yaml", filepath.Base(files[0]))
	assert.Equal(t, "delete_comment.yaml", filepath.Base(files[1]))

	_, err = FindScenarios(scenariosDir, "[")
	require.Error(t, err)
}

func TestRunSuite_ShippedScenarios(t *testing.T) {
	result, err := RunSuite(scenariosDir, SuiteOptions{})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 6, result.Passed, "outcomes: %+v", result.Scenarios)
	assert.Equal(t, 0, result.Failed)
}

func TestRunSuite_UpdateThenCompare(t *testing.T) {
	path := writeFixture(t, minimalScenario)
	dir := filepath.Dir(path)
	golden := GoldenPath(path, "minimal")

	// Without a golden file only assertions count.
	result, err := RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.NoFileExists(t, golden)

	result, err = RunSuite(dir, SuiteOptions{Update: true})
	require.NoError(t, err)
	require.Len(t, result.Scenarios, 1)
	assert.True(t, result.Scenarios[0].GoldenUpdated)
	assert.FileExists(t, golden)

	result, err = RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	result, err = RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Scenarios[0].Errors[0], "does not match golden file")
}

func TestRunSuite_LoadErrorIsAFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	result, err := RunSuite(dir, SuiteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "broken.yaml", result.Scenarios[0].Name)
	assert.Contains(t, result.Scenarios[0].Errors[0], "failed to load scenario")
}

func TestRunSuite_MissingDirectory(t *testing.T) {
	_, err := RunSuite(filepath.Join(t.TempDir(), "missing"), SuiteOptions{})
	require.Error(t, err)
}
