package catalog

import (
	"context"
	"fmt"

	"github.com/flowgate/flowgate/pkg/domain"
)

var mergeStrategies = map[string]bool{
	"concat": true, "union": true, "intersect": true, "deepMerge": true,
}

func newMergeDataDescriptor() *Descriptor {
	return &Descriptor{
		Kind:           KindMergeData,
		Output:         OutputAny,
		OutputFor:      mergeOutputType,
		Cacheable:      cacheableAlways,
		ArrayInputKeys: []string{"sources"},
		Validate:       validateMergeDataArgs,
		Execute:        executeMergeData,
	}
}

func mergeOutputType(args map[string]any) OutputType {
	if args["strategy"] == "deepMerge" {
		return OutputObject
	}
	return OutputArray
}

func validateMergeDataArgs(args map[string]any) []domain.Issue {
	var issues []domain.Issue
	sources, ok := args["sources"].([]any)
	if !ok {
		issues = append(issues, structureIssue(`missing or invalid field "sources" (must be an array of paths)`))
	} else if len(sources) < 2 {
		issues = append(issues, structureIssueWithHint(
			fmt.Sprintf("MergeData requires at least two sources, got %d", len(sources)),
			"list two or more /workflow paths to merge"))
	}
	strategy, _ := args["strategy"].(string)
	if !mergeStrategies[strategy] {
		issues = append(issues, structureIssueWithHint(
			fmt.Sprintf("unknown strategy %q", strategy),
			"supported strategies: concat, union, intersect, deepMerge"))
	}
	issues = append(issues, requireOutputPath(args)...)
	return issues
}

func executeMergeData(_ context.Context, _ Env, args map[string]any) (any, error) {
	sources, derr := argArray(args, "sources")
	if derr != nil {
		return nil, derr
	}
	if len(sources) < 2 {
		return nil, domain.NewValidationError("MergeData requires at least two sources")
	}
	strategy, derr := argString(args, "strategy")
	if derr != nil {
		return nil, derr
	}

	switch strategy {
	case "concat":
		return mergeConcat(sources)
	case "union":
		return mergeUnion(sources)
	case "intersect":
		return mergeIntersect(sources)
	case "deepMerge":
		return mergeDeep(sources)
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unknown strategy %q", strategy))
	}
}

func sourceArrays(sources []any) ([][]any, *domain.Error) {
	arrays := make([][]any, len(sources))
	for i, s := range sources {
		arr, ok := s.([]any)
		if !ok {
			return nil, domain.NewDataError(
				fmt.Sprintf("merge source %d must resolve to an array", i), "")
		}
		arrays[i] = arr
	}
	return arrays, nil
}

func mergeConcat(sources []any) (any, error) {
	arrays, derr := sourceArrays(sources)
	if derr != nil {
		return nil, derr
	}
	out := make([]any, 0)
	for _, arr := range arrays {
		out = append(out, arr...)
	}
	return out, nil
}

// mergeUnion keeps the first occurrence of each deeply-equal element, in
// source order.
func mergeUnion(sources []any) (any, error) {
	arrays, derr := sourceArrays(sources)
	if derr != nil {
		return nil, derr
	}
	out := make([]any, 0)
	for _, arr := range arrays {
		for _, item := range arr {
			if !containsDeep(out, item) {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

// mergeIntersect keeps elements of the first source that appear (by deep
// equality) in every other source.
func mergeIntersect(sources []any) (any, error) {
	arrays, derr := sourceArrays(sources)
	if derr != nil {
		return nil, derr
	}
	out := make([]any, 0)
	for _, item := range arrays[0] {
		if containsDeep(out, item) {
			continue
		}
		inAll := true
		for _, other := range arrays[1:] {
			if !containsDeep(other, item) {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, item)
		}
	}
	return out, nil
}

func containsDeep(arr []any, item any) bool {
	for _, existing := range arr {
		if deepEqual(existing, item) {
			return true
		}
	}
	return false
}

// mergeDeep recursively merges object sources left to right; the
// rightmost value wins on conflicts and nested objects merge key-wise.
func mergeDeep(sources []any) (any, error) {
	out := make(map[string]any)
	for i, s := range sources {
		obj, ok := s.(map[string]any)
		if !ok {
			return nil, domain.NewDataError(
				fmt.Sprintf("deepMerge source %d must resolve to an object", i), "")
		}
		deepMergeInto(out, obj)
	}
	return out, nil
}

func deepMergeInto(dst, src map[string]any) {
	for k, v := range src {
		if srcObj, ok := v.(map[string]any); ok {
			if dstObj, ok := dst[k].(map[string]any); ok {
				deepMergeInto(dstObj, srcObj)
				continue
			}
			merged := make(map[string]any, len(srcObj))
			deepMergeInto(merged, srcObj)
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}
