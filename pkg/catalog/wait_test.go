package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/domain"
)

func TestWaitZeroReturnsImmediately(t *testing.T) {
	start := time.Now()
	out, err := executeWait(context.Background(), nil, map[string]any{"duration": float64(0)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"waitedMs": float64(0)}, out)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitSleeps(t *testing.T) {
	start := time.Now()
	out, err := executeWait(context.Background(), nil, map[string]any{"duration": float64(30)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"waitedMs": float64(30)}, out)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := executeWait(ctx, nil, map[string]any{"duration": float64(5000)})
	require.Error(t, err)
	assert.Equal(t, domain.TypeCancellationError, domain.AsError(err).Type)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitRejectsOutOfRange(t *testing.T) {
	_, err := executeWait(context.Background(), nil, map[string]any{"duration": float64(-1)})
	require.Error(t, err)
	_, err = executeWait(context.Background(), nil, map[string]any{"duration": float64(maxWaitMs + 1)})
	require.Error(t, err)
}

func TestValidateWaitArgs(t *testing.T) {
	assert.Empty(t, validateWaitArgs(map[string]any{"duration": float64(100)}))
	assert.NotEmpty(t, validateWaitArgs(map[string]any{"duration": float64(-5)}))
	assert.NotEmpty(t, validateWaitArgs(map[string]any{"duration": "soon"}))
	assert.NotEmpty(t, validateWaitArgs(map[string]any{}))
}
