package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/storage"
)

func TestStoreDataPutsValue(t *testing.T) {
	store := storage.NewMemoryStore()
	exec := &storeDataExecutor{store: store}

	out, err := exec.execute(context.Background(), nil, map[string]any{
		"inputPath": map[string]any{"total": float64(42)},
		"storage":   "localStorage",
		"key":       "summary",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stored": true, "storage": "localStorage", "key": "summary"}, out)

	v, ok, err := store.Get(context.Background(), "localStorage", "summary")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"total": float64(42)}, v)
}

func TestStoreDataMissingInput(t *testing.T) {
	exec := &storeDataExecutor{store: storage.NewMemoryStore()}
	_, err := exec.execute(context.Background(), nil, map[string]any{
		"storage": "localStorage",
		"key":     "k",
	})
	require.Error(t, err)
}

func TestValidateStoreDataArgs(t *testing.T) {
	issues := validateStoreDataArgs(map[string]any{
		"inputPath": "/workflow/data",
		"storage":   "file",
		"key":       "report",
	})
	assert.Empty(t, issues)

	issues = validateStoreDataArgs(map[string]any{
		"inputPath": "/workflow/data",
		"storage":   "s3",
		"key":       "report",
	})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "unknown storage")

	issues = validateStoreDataArgs(map[string]any{
		"inputPath": "/workflow/data",
		"storage":   "file",
	})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, `"key"`)
}
