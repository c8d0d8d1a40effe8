package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/datamodel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEnv backs executor tests with a real tree and recorded dispatches.
type fakeEnv struct {
	tree    *datamodel.Tree
	ran     []string
	skipped []string
	runFn   func(ctx context.Context, opID string) (any, error)
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{tree: datamodel.NewTree(0)}
}

func (e *fakeEnv) Read(p datamodel.Path) (any, error)  { return e.tree.Read(p) }
func (e *fakeEnv) Write(p datamodel.Path, v any) error { return e.tree.Write(p, v) }
func (e *fakeEnv) Exists(p datamodel.Path) bool        { return e.tree.Exists(p) }
func (e *fakeEnv) Delete(p datamodel.Path)             { e.tree.Delete(p) }

func (e *fakeEnv) RunOperation(ctx context.Context, opID string) (any, error) {
	e.ran = append(e.ran, opID)
	if e.runFn != nil {
		return e.runFn(ctx, opID)
	}
	return nil, nil
}

func (e *fakeEnv) SkipOperations(ids []string) {
	e.skipped = append(e.skipped, ids...)
}

func testPath(t *testing.T, raw string) datamodel.Path {
	t.Helper()
	p, err := datamodel.ParsePath(raw)
	require.NoError(t, err)
	return p
}
