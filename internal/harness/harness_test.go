package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/schema"
)

func demoHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	catalog, err := schema.LoadDir("../../schema", nil)
	require.NoError(t, err)

	h, closeDB, err := NewDemo(context.Background(), catalog, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { closeDB() })
	return h
}

func TestScenarios_Golden(t *testing.T) {
	h := demoHarness(t)

	paths, err := Discover("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, h, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_RejectionIsAResult(t *testing.T) {
	h := demoHarness(t)
	scenario, err := ParseScenario([]byte(`
name: rejected
description: "operator without a key"
entity: users
filter:
  eq: 1
assertions:
  - type: accepted
`))
	require.NoError(t, err)

	result, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NotNil(t, result.Rejection)
	assert.Equal(t, "eq", result.Rejection.Field)
	assert.Equal(t, "The eq operator requires a search key.", result.Rejection.Message)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: filter accepted")
	assert.Empty(t, result.SQL)
}

func TestRun_DepthExceeded(t *testing.T) {
	h := demoHarness(t, WithMaxDepth(2))
	scenario, err := ParseScenario([]byte(`
name: deep
description: "too deep"
entity: users
filter:
  and:
    - or:
        - name: bob
assertions:
  - type: rejected
    code: E204
    field: filter
`))
	require.NoError(t, err)

	result, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "The filter exceeds the maximum nesting depth of 2.", result.Rejection.Message)
}

func TestRun_UnknownEntity(t *testing.T) {
	h := demoHarness(t)
	scenario := &Scenario{Name: "x", Description: "x", Entity: "nope"}

	_, err := h.Run(context.Background(), scenario)
	assert.Error(t, err)
}

func TestRun_FailingAssertions(t *testing.T) {
	h := demoHarness(t)
	scenario, err := ParseScenario([]byte(`
name: wrong
description: "every assertion is wrong"
entity: users
filter:
  name: bob
assertions:
  - type: rejected
    code: E202
  - type: rows
    ids: [1]
  - type: row_count
    count: 3
  - type: trace_contains
    call: where(name, =, "alice", and)
  - type: sql
    sql: SELECT 1
`))
	require.NoError(t, err)

	result, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 5)
	assert.Equal(t, []any{int64(2)}, result.IDs)
}

func TestRun_CompileOnly(t *testing.T) {
	catalog, err := schema.LoadDir("../../schema", nil)
	require.NoError(t, err)
	h, err := New(catalog)
	require.NoError(t, err)

	scenario, err := ParseScenario([]byte(`
name: compile_only
description: "no executor"
entity: orders
filter:
  status:
    in: [paid, void]
assertions:
  - type: sql
    sql: SELECT orders.* FROM orders WHERE (orders.status IN (?,?)) ORDER BY orders.id ASC
  - type: rows
    ids: []
`))
	require.NoError(t, err)

	result, err := h.Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Executed)
	assert.Equal(t, []any{"paid", "void"}, result.Args)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no executor configured")
}

func TestGoldenFiles(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := filepath.Join(dir, "case.yaml")
	path := GoldenPath(scenarioFile)
	assert.Equal(t, filepath.Join(dir, "golden", "case.golden"), path)

	result := &Result{Trace: "where(a, =, 1, and)\n"}
	require.NoError(t, WriteGolden(path, result))

	match, err := CompareGolden(path, result)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = CompareGolden(path, &Result{Trace: "other\n"})
	require.NoError(t, err)
	assert.False(t, match)

	_, err = CompareGolden(filepath.Join(dir, "missing.golden"), result)
	assert.Error(t, err)
}
