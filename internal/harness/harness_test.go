package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	two := int64(2)
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Documents: []DocumentStep{
			{Body: map[string]any{"a": 1}},
			{ID: "named", Body: map[string]any{"a": 2}},
		},
		Assertions: []Assertion{
			{Type: AssertCount, Count: &two},
			{Type: AssertIDs, IDs: []string{"doc-0001", "named"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, `SELECT id, body FROM "docs" WHERE 1=1 ORDER BY id ASC`, result.SQL)
	assert.Empty(t, result.Params)
	assert.Nil(t, result.Pages, "unsorted queries are not walked")
}

func TestRun_FailedAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "Expectations that do not hold",
		Documents: []DocumentStep{
			{Body: map[string]any{"a": 1}},
			{Body: map[string]any{"a": 2}},
		},
		Query: map[string]any{"a": 1},
		Assertions: []Assertion{
			{Type: AssertIDs, IDs: []string{"doc-0002"}},
			{Type: AssertError, Kind: "InvalidCursor"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: ids")
	assert.Contains(t, result.Errors[0], "Actual: [doc-0001]")
	assert.Contains(t, result.Errors[1], "Assertion failed: error")
	assert.Contains(t, result.Errors[1], "query compiled")
}

func TestRun_RejectedQuery(t *testing.T) {
	scenario := &Scenario{
		Name:        "rejected",
		Description: "Array operator on an integer column",
		Schema: map[string]any{
			"fields": []any{map[string]any{"name": "n", "type": "integer", "indexed": true}},
		},
		Query: map[string]any{"n": map[string]any{"$all": []any{1}}},
		Assertions: []Assertion{
			{Type: AssertError, Kind: "UnknownOperatorCombination"},
			{Type: AssertIDs},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	require.Error(t, result.Err)
	assert.Empty(t, result.SQL)
	require.Len(t, result.Errors, 1, "only the ids assertion fails")
	assert.Contains(t, result.Errors[0], "query to compile")
}

func TestRun_PagesWalk(t *testing.T) {
	var docs []DocumentStep
	for i := range 7 {
		docs = append(docs, DocumentStep{Body: map[string]any{"n": i % 3}})
	}
	scenario := &Scenario{
		Name:        "walk",
		Description: "Ties on n are broken by id",
		Documents:   docs,
		Options:     map[string]any{"sort": []any{"-n"}, "limit": 3},
		Assertions: []Assertion{{Type: AssertPages, Pages: [][]string{
			{"doc-0003", "doc-0006", "doc-0002"},
			{"doc-0005", "doc-0001", "doc-0004"},
			{"doc-0007"},
		}}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"doc-0003", "doc-0006", "doc-0002"}, result.IDs)
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{
		Name:  "bad",
		Query: map[string]any{"a": map[string]any{"$bogus": 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid scenario "bad"`)
}

func TestRun_DocumentViolatesSchema(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{
		Name: "not_null",
		Schema: map[string]any{
			"fields": []any{map[string]any{"name": "status", "indexed": true, "nullable": false}},
		},
		Documents: []DocumentStep{{Body: map[string]any{"other": 1}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load documents")
}
