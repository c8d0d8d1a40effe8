package datamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/domain"
)

func TestTreeWriteRead(t *testing.T) {
	tree := NewTree(0)

	require.NoError(t, tree.Write(mustPath(t, "/workflow/users"), []any{
		map[string]any{"id": float64(1), "name": "ada"},
		map[string]any{"id": float64(2), "name": "grace"},
	}))

	v, err := tree.Read(mustPath(t, "/workflow/users[1].name"))
	require.NoError(t, err)
	assert.Equal(t, "grace", v)

	v, err = tree.Read(mustPath(t, "/workflow/users"))
	require.NoError(t, err)
	assert.Len(t, v, 2)
}

func TestTreeAutovivifiesObjects(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/a/b/c"), "deep"))

	v, err := tree.Read(mustPath(t, "/workflow/a/b/c"))
	require.NoError(t, err)
	assert.Equal(t, "deep", v)

	v, err = tree.Read(mustPath(t, "/workflow/a"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": map[string]any{"c": "deep"}}, v)
}

func TestTreeMissingPathIsDataError(t *testing.T) {
	tree := NewTree(0)
	_, err := tree.Read(mustPath(t, "/workflow/nothing"))
	require.Error(t, err)
	assert.Equal(t, domain.TypeDataError, domain.AsError(err).Type)
}

func TestTreeIndexOutOfBounds(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/items"), []any{"a"}))

	_, err := tree.Read(mustPath(t, "/workflow/items[5]"))
	require.Error(t, err)
	assert.Equal(t, domain.TypeDataError, domain.AsError(err).Type)

	err = tree.Write(mustPath(t, "/workflow/items[5]"), "x")
	require.Error(t, err)
	assert.Equal(t, domain.TypeDataError, domain.AsError(err).Type)
}

func TestTreeShapeMismatch(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/obj"), map[string]any{"k": "v"}))
	require.NoError(t, tree.Write(mustPath(t, "/workflow/arr"), []any{"a"}))

	_, err := tree.Read(mustPath(t, "/workflow/obj[0]"))
	require.Error(t, err)
	_, err = tree.Read(mustPath(t, "/workflow/arr/field"))
	require.Error(t, err)
}

func TestTreeRootWriteRejected(t *testing.T) {
	tree := NewTree(0)
	err := tree.Write(mustPath(t, "/workflow"), map[string]any{})
	require.Error(t, err)
}

func TestTreeWriteReplaces(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/v"), "first"))
	require.NoError(t, tree.Write(mustPath(t, "/workflow/v"), "second"))

	v, err := tree.Read(mustPath(t, "/workflow/v"))
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestTreeReadReturnsCopy(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/obj"), map[string]any{"k": "v"}))

	v, err := tree.Read(mustPath(t, "/workflow/obj"))
	require.NoError(t, err)
	v.(map[string]any)["k"] = "mutated"

	again, err := tree.Read(mustPath(t, "/workflow/obj"))
	require.NoError(t, err)
	assert.Equal(t, "v", again.(map[string]any)["k"])
}

func TestTreeDelete(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/scope/current"), "x"))
	assert.True(t, tree.Exists(mustPath(t, "/workflow/scope")))

	tree.Delete(mustPath(t, "/workflow/scope"))
	assert.False(t, tree.Exists(mustPath(t, "/workflow/scope")))

	// Deleting a missing path is a no-op.
	tree.Delete(mustPath(t, "/workflow/scope"))
}

func TestTreeSizeLimit(t *testing.T) {
	tree := NewTree(32)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/small"), "ok"))

	err := tree.Write(mustPath(t, "/workflow/big"), map[string]any{
		"payload": "a long string that exceeds the remaining budget",
	})
	require.Error(t, err)
	assert.Equal(t, domain.TypeResourceError, domain.AsError(err).Type)

	// Replacing a value only charges the delta.
	require.NoError(t, tree.Write(mustPath(t, "/workflow/small"), "ok2"))
}

func TestTreeTopLevel(t *testing.T) {
	tree := NewTree(0)
	require.NoError(t, tree.Write(mustPath(t, "/workflow/a"), float64(1)))
	require.NoError(t, tree.Write(mustPath(t, "/workflow/b/c"), float64(2)))

	top := tree.TopLevel()
	assert.Equal(t, float64(1), top["/workflow/a"])
	assert.Equal(t, map[string]any{"c": float64(2)}, top["/workflow/b"])
}
