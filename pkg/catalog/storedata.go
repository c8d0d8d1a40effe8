package catalog

import (
	"context"
	"fmt"

	"github.com/flowgate/flowgate/pkg/domain"
	"github.com/flowgate/flowgate/pkg/storage"
)

var storageKinds = map[string]bool{
	"localStorage": true, "sessionStorage": true, "file": true,
}

func newStoreDataDescriptor(opts Options) *Descriptor {
	exec := &storeDataExecutor{store: opts.Storage}
	return &Descriptor{
		Kind:      KindStoreData,
		Output:    OutputNone,
		Cacheable: cacheableNever,
		Validate:  validateStoreDataArgs,
		Execute:   exec.execute,
	}
}

func validateStoreDataArgs(args map[string]any) []domain.Issue {
	var issues []domain.Issue
	if _, ok := args["inputPath"]; !ok {
		issues = append(issues, structureIssue(`missing required field "inputPath"`))
	}
	kind, _ := args["storage"].(string)
	if !storageKinds[kind] {
		issues = append(issues, structureIssueWithHint(
			fmt.Sprintf("unknown storage %q", kind),
			"supported storage backends: localStorage, sessionStorage, file"))
	}
	if key, ok := args["key"].(string); !ok || key == "" {
		issues = append(issues, structureIssue(`missing required field "key"`))
	}
	return issues
}

type storeDataExecutor struct {
	store storage.Store
}

func (e *storeDataExecutor) execute(ctx context.Context, _ Env, args map[string]any) (any, error) {
	kind, derr := argString(args, "storage")
	if derr != nil {
		return nil, derr
	}
	key, derr := argString(args, "key")
	if derr != nil {
		return nil, derr
	}
	value, ok := args["inputPath"]
	if !ok {
		return nil, domain.NewValidationError(`missing required field "inputPath"`)
	}

	if err := e.store.Put(ctx, kind, key, value); err != nil {
		return nil, domain.AsError(err)
	}
	return map[string]any{"stored": true, "storage": kind, "key": key}, nil
}
