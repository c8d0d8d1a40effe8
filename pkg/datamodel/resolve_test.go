package datamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectRefs(t *testing.T) {
	args := map[string]any{
		"inputPath":  "/workflow/users",
		"outputPath": "/workflow/filtered",
		"url":        "https://api.example.com/users/{/workflow/user.id}/posts",
		"nested": map[string]any{
			"sources": []any{"/workflow/a", "/workflow/b"},
		},
		"plain": "not a path",
	}

	refs := CollectRefs(args, SkipOutputPath)
	raw := make([]string, len(refs))
	for i, r := range refs {
		raw[i] = r.String()
	}
	assert.ElementsMatch(t, []string{
		"/workflow/users", "/workflow/user.id", "/workflow/a", "/workflow/b",
	}, raw)
}

func TestCollectRefsSkipsOutputPath(t *testing.T) {
	refs := CollectRefs(map[string]any{"outputPath": "/workflow/out"}, SkipOutputPath)
	assert.Empty(t, refs)
}

func TestResolveRefsBarePath(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/users"), []any{"ada", "grace"}))

	resolved, err := ResolveRefs(map[string]any{
		"inputPath":  "/workflow/users",
		"outputPath": "/workflow/out",
	}, tree, SkipOutputPath)
	require.NoError(t, err)

	assert.Equal(t, []any{"ada", "grace"}, resolved["inputPath"])
	// The write target stays a literal path string.
	assert.Equal(t, "/workflow/out", resolved["outputPath"])
}

func TestResolveRefsTemplate(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/user"), map[string]any{"id": float64(42)}))

	resolved, err := ResolveRefs(map[string]any{
		"url": "https://api.example.com/users/{/workflow/user.id}/posts",
	}, tree, SkipOutputPath)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users/42/posts", resolved["url"])
}

func TestResolveRefsMissingPath(t *testing.T) {
	tree := NewTree(0)

	_, err := ResolveRefs(map[string]any{"inputPath": "/workflow/missing"}, tree, SkipOutputPath)
	require.Error(t, err)

	_, err = ResolveRefs(map[string]any{"url": "x{/workflow/missing}y"}, tree, SkipOutputPath)
	require.Error(t, err)
}

func TestResolveRefsNested(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/a"), "va"))
	require.NoError(t, tree.Write(mustPath(t, "/workflow/b"), "vb"))

	resolved, err := ResolveRefs(map[string]any{
		"sources": []any{"/workflow/a", "/workflow/b"},
		"deep":    map[string]any{"ref": "/workflow/a"},
		"number":  float64(7),
	}, tree, SkipOutputPath)
	require.NoError(t, err)
	assert.Equal(t, []any{"va", "vb"}, resolved["sources"])
	assert.Equal(t, map[string]any{"ref": "va"}, resolved["deep"])
	assert.Equal(t, float64(7), resolved["number"])
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "null", Stringify(nil))
	assert.Equal(t, "plain", Stringify("plain"))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "3.5", Stringify(3.5))
	assert.Equal(t, "42", Stringify(float64(42)))
	assert.Equal(t, `["a"]`, Stringify([]any{"a"}))
}
