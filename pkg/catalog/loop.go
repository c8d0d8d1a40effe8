package catalog

import (
	"context"

	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
)

// Loop binding paths visible to body operations during an iteration.
const (
	LoopScopePath   = "/workflow/_loop"
	LoopCurrentPath = "/workflow/_loop/current"
	LoopIndexPath   = "/workflow/_loop/index"
)

func newLoopDescriptor() *Descriptor {
	return &Descriptor{
		Kind:           KindLoop,
		Output:         OutputArray,
		Cacheable:      cacheableNever,
		ArrayInputKeys: []string{"inputPath"},
		Validate:       validateLoopArgs,
		Execute:        executeLoop,
	}
}

func validateLoopArgs(args map[string]any) []domain.Issue {
	var issues []domain.Issue
	if _, ok := args["inputPath"]; !ok {
		issues = append(issues, structureIssue(`missing required field "inputPath"`))
	}
	ids, ok := branchIDs(args, "operations")
	if !ok || len(ids) == 0 {
		issues = append(issues, structureIssue(`missing or invalid field "operations" (must be a non-empty array of operation ids)`))
	}
	if raw, present := args["outputPath"]; present {
		s, ok := raw.(string)
		if !ok {
			issues = append(issues, structureIssue(`field "outputPath" must be a string`))
		} else if _, err := datamodel.ParsePath(s); err != nil {
			issues = append(issues, structureIssue("invalid outputPath: "+err.Error()))
		}
	}
	return issues
}

// executeLoop runs the body operations once per input element with
// /workflow/_loop/current and /workflow/_loop/index bound. Iterations are
// sequential; the first failure aborts the loop. When outputPath is set
// the collected per-iteration results (the last body operation's output)
// are the operation result and get written there by the executor.
func executeLoop(ctx context.Context, env Env, args map[string]any) (any, error) {
	input, ok := args["inputPath"].([]any)
	if !ok {
		return nil, domain.NewDataError("Loop input must be an array", "")
	}
	bodyIDs, ok := branchIDs(args, "operations")
	if !ok {
		return nil, domain.NewValidationError(`field "operations" must be an array of operation ids`)
	}

	scope, err := datamodel.ParsePath(LoopScopePath)
	if err != nil {
		return nil, err
	}
	current, err := datamodel.ParsePath(LoopCurrentPath)
	if err != nil {
		return nil, err
	}
	index, err := datamodel.ParsePath(LoopIndexPath)
	if err != nil {
		return nil, err
	}
	defer env.Delete(scope)

	results := make([]any, 0, len(input))
	for i, element := range input {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewCancellationError("loop cancelled")
		}
		if err := env.Write(current, element); err != nil {
			return nil, err
		}
		if err := env.Write(index, float64(i)); err != nil {
			return nil, err
		}

		var last any
		for _, opID := range bodyIDs {
			out, err := env.RunOperation(ctx, opID)
			if err != nil {
				return nil, err
			}
			last = out
		}
		results = append(results, last)
	}
	return results, nil
}
