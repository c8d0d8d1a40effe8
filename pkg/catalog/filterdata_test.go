package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func filterArgs(input []any, conditions ...any) map[string]any {
	return map[string]any{
		"inputPath":  input,
		"conditions": conditions,
		"outputPath": "/workflow/out",
	}
}

func TestFilterDataEmptyConditionsIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		input := make([]any, n)
		for i := range input {
			input[i] = map[string]any{
				"id":   float64(rapid.IntRange(0, 1000).Draw(t, "id")),
				"name": rapid.StringMatching(`[a-z]{0,8}`).Draw(t, "name"),
			}
		}

		out, err := executeFilterData(context.Background(), nil, filterArgs(input))
		if err != nil {
			t.Fatalf("filter failed: %v", err)
		}
		assert.Equal(t, input, out)
	})
}

func TestFilterDataComparisons(t *testing.T) {
	input := []any{
		map[string]any{"id": float64(1), "points": float64(50), "tag": "alpha"},
		map[string]any{"id": float64(2), "points": float64(200), "tag": "beta"},
		map[string]any{"id": float64(3), "points": float64(120)},
	}

	cases := []struct {
		name string
		cond map[string]any
		ids  []float64
	}{
		{"gt", map[string]any{"field": "points", "operator": ">", "value": float64(100)}, []float64{2, 3}},
		{"eq", map[string]any{"field": "id", "operator": "==", "value": float64(2)}, []float64{2}},
		{"ne", map[string]any{"field": "id", "operator": "!=", "value": float64(2)}, []float64{1, 3}},
		{"lte", map[string]any{"field": "points", "operator": "<=", "value": float64(120)}, []float64{1, 3}},
		{"in", map[string]any{"field": "tag", "operator": "in", "value": []any{"alpha", "gamma"}}, []float64{1}},
		{"startsWith", map[string]any{"field": "tag", "operator": "startsWith", "value": "be"}, []float64{2}},
		{"endsWith", map[string]any{"field": "tag", "operator": "endsWith", "value": "ta"}, []float64{2}},
		{"contains", map[string]any{"field": "tag", "operator": "contains", "value": "lph"}, []float64{1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := executeFilterData(context.Background(), nil, filterArgs(input, tc.cond))
			require.NoError(t, err)
			var got []float64
			for _, item := range out.([]any) {
				got = append(got, item.(map[string]any)["id"].(float64))
			}
			assert.Equal(t, tc.ids, got)
		})
	}
}

func TestFilterDataMissingFieldNeverMatchesOrdering(t *testing.T) {
	// Element 3 has no "tag"; ordered comparison against a missing field
	// keeps the element out rather than erroring.
	input := []any{
		map[string]any{"id": float64(1), "tag": "z"},
		map[string]any{"id": float64(2)},
	}
	out, err := executeFilterData(context.Background(), nil, filterArgs(input,
		map[string]any{"field": "tag", "operator": ">", "value": "a"}))
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestFilterDataConditionsAreConjunctive(t *testing.T) {
	input := []any{
		map[string]any{"a": float64(1), "b": float64(1)},
		map[string]any{"a": float64(1), "b": float64(2)},
	}
	out, err := executeFilterData(context.Background(), nil, filterArgs(input,
		map[string]any{"field": "a", "operator": "==", "value": float64(1)},
		map[string]any{"field": "b", "operator": "==", "value": float64(2)},
	))
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestFilterDataNonArrayInput(t *testing.T) {
	_, err := executeFilterData(context.Background(), nil, map[string]any{
		"inputPath":  "not an array",
		"conditions": []any{},
	})
	require.Error(t, err)
}

func TestValidateFilterDataArgs(t *testing.T) {
	issues := validateFilterDataArgs(map[string]any{})
	assert.NotEmpty(t, issues)

	issues = validateFilterDataArgs(map[string]any{
		"inputPath": "/workflow/in",
		"conditions": []any{
			map[string]any{"field": "x", "operator": "~", "value": float64(1)},
		},
		"outputPath": "/workflow/out",
	})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "unknown operator")

	issues = validateFilterDataArgs(map[string]any{
		"inputPath":  "/workflow/in",
		"conditions": []any{},
		"outputPath": "/workflow/out",
	})
	assert.Empty(t, issues)
}
