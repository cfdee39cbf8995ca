package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/harness"
)

const scenariosDir = "../../testdata/scenarios"

func TestTest_ShippedScenariosPass(t *testing.T) {
	out, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ query_user")
	assert.Contains(t, out, "✓ cascade_isolation")
	assert.Contains(t, out, "Test Summary: 6 passed, 0 failed, 6 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTest_FilterJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", scenariosDir, "--filter", "*_comment")
	require.NoError(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	assert.Equal(t, "create_comment", resp.Data.Scenarios[0].Name)
}

// failingScenario expects a name the stubbed response never provides.
const failingScenario = `
name: wrong_name
schema: blog.cue
responses:
  - document: '{ user(id: "1") { id name } }'
    data:
      user: { id: "1", name: Ann }
steps:
  - query: '{ user(id: "1") { id name } }'
assertions:
  - type: entity
    entity: User:1
    expect: { name: Bo }
`

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	schemaSrc, err := os.ReadFile(blogSchema)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.cue"), schemaSrc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_name.yaml"), []byte(failingScenario), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_name")
	assert.Contains(t, out, "User:1.name = Bo")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTest_UpdateWritesGoldens(t *testing.T) {
	dir := t.TempDir()
	schemaSrc, err := os.ReadFile(blogSchema)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog.cue"), schemaSrc, 0o644))
	scenario := []byte(`
name: ann
schema: blog.cue
responses:
  - document: '{ user(id: "1") { id name } }'
    data:
      user: { id: "1", name: Ann }
steps:
  - query: '{ user(id: "1") { id name } }'
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ann.yaml"), scenario, 0o644))

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ann (golden updated)")
	assert.FileExists(t, filepath.Join(dir, "golden", "ann.golden"))

	_, err = execute(t, "test", dir)
	require.NoError(t, err)
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
