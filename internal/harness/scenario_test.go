package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/graphcache/internal/testutil"
)

// writeFixture writes the blog schema and a scenario file into a fresh
// directory and returns the scenario path.
func writeFixture(t *testing.T, scenarioYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "schemas"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schemas", "blog.cue"), []byte(testutil.BlogSchema), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))
	return path
}

const minimalScenario = `
name: minimal
description: one query
schema: schemas/blog.cue
responses:
  - document: '{ user(id: "1") { id } }'
    data: { user: { id: "1" } }
steps:
  - query: '{ user(id: "1") { id } }'
assertions:
  - type: dispatch_count
    count: 1
`

func TestLoadScenario_Valid(t *testing.T) {
	path := writeFixture(t, minimalScenario)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "schemas", "blog.cue"), s.Schema)
	require.Len(t, s.Responses, 1)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, `{ user(id: "1") { id } }`, s.Steps[0].Query)
	assert.Equal(t, map[string]any{"user": map[string]any{"id": "1"}}, s.Responses[0].Data)
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeFixture(t, strings.Replace(minimalScenario, "assertions:", "assertion:", 1))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_ListUpdateForms(t *testing.T) {
	path := writeFixture(t, `
name: updates
description: list updates in both forms
schema: schemas/blog.cue
steps:
  - mutation: 'mutation { deleteComment(id: "1") { id postId } }'
    append: ["Post:postId:commentIds:id"]
    remove: ["Post:postId:commentIds:id"]
    update_cache:
      - { parent_type: User, parent_id_field: authorId, list_field: commentIds, value_field: id }
assertions:
  - type: last_error
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	updates, err := s.Steps[0].listUpdates()
	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.False(t, updates[0].Remove)
	assert.True(t, updates[1].Remove)
	assert.Equal(t, "User", updates[2].ParentType)
	assert.Equal(t, "authorId", updates[2].ParentIDField)
}

func TestValidateScenario(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "blog.cue")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testutil.BlogSchema), 0o644))

	valid := func() Scenario {
		return Scenario{
			Name:        "s",
			Description: "d",
			Schema:      schemaPath,
			Steps:       []Step{{Query: "{ user { id } }"}},
			Assertions:  []Assertion{{Type: AssertLastError}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing schema", func(s *Scenario) { s.Schema = "" }, "schema is required"},
		{"schema not found", func(s *Scenario) { s.Schema = schemaPath + ".missing" }, "schema file not found"},
		{"no steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"query and mutation", func(s *Scenario) { s.Steps[0].Mutation = "mutation { x }" }, "mutually exclusive"},
		{"empty step", func(s *Scenario) { s.Steps[0].Query = "" }, "query or mutation is required"},
		{"list update on query", func(s *Scenario) { s.Steps[0].Append = []string{"Post:postId:commentIds:id"} }, "mutations only"},
		{"files on query", func(s *Scenario) { s.Steps[0].Files = []FileStep{{Name: "a.txt"}} }, "files apply to mutations only"},
		{"bad list update", func(s *Scenario) {
			s.Steps[0] = Step{Mutation: "mutation { x }", Append: []string{"Post:postId"}}
		}, "Type:parentIdField:listField:valueField"},
		{"response without document", func(s *Scenario) { s.Responses = []Response{{Error: "x"}} }, "document is required"},
		{"response without outcome", func(s *Scenario) { s.Responses = []Response{{Document: "{ a }"}} }, "one of data, errors or error"},
		{"response error with data", func(s *Scenario) {
			s.Responses = []Response{{Document: "{ a }", Error: "x", Data: map[string]any{}}}
		}, "cannot be combined"},
		{"assertion without type", func(s *Scenario) { s.Assertions = []Assertion{{}} }, "type is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_order"}} }, "unknown assertion type"},
		{"entity without ref", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertEntity, Entity: "User", Expect: map[string]any{"a": 1}}}
		}, "entity must be Type:ID"},
		{"entity without expect", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertEntity, Entity: "User:1"}} }, "expect is required"},
		{"absent without ref", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertAbsent}} }, "entity must be Type:ID"},
		{"negative count", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertDispatchCount, Count: -1}} }, "non-negative"},
		{"read without document", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertRead, Expect: map[string]any{}}}
		}, "document is required for read"},
		{"read without expect", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertRead, Document: "{ a }"}} }, "expect is required for read"},
	}

	s := valid()
	require.NoError(t, validateScenario(&s))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := validateScenario(&s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
