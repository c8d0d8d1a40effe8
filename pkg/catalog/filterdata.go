package catalog

import (
	"context"
	"fmt"

	"github.com/flowgate/flowgate/pkg/domain"
)

var filterOperators = map[string]bool{
	"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
	"in": true, "contains": true, "startsWith": true, "endsWith": true,
}

func newFilterDataDescriptor() *Descriptor {
	return &Descriptor{
		Kind:           KindFilterData,
		Output:         OutputArray,
		Cacheable:      cacheableAlways,
		ArrayInputKeys: []string{"inputPath"},
		Validate:       validateFilterDataArgs,
		Execute:        executeFilterData,
	}
}

func validateFilterDataArgs(args map[string]any) []domain.Issue {
	var issues []domain.Issue
	if _, ok := args["inputPath"]; !ok {
		issues = append(issues, structureIssue(`missing required field "inputPath"`))
	}
	conditions, ok := args["conditions"].([]any)
	if !ok {
		issues = append(issues, structureIssue(`missing or invalid field "conditions" (must be an array)`))
	} else {
		for i, c := range conditions {
			cond, ok := c.(map[string]any)
			if !ok {
				issues = append(issues, structureIssue(fmt.Sprintf("condition %d must be an object", i)))
				continue
			}
			if _, ok := cond["field"].(string); !ok {
				issues = append(issues, structureIssue(fmt.Sprintf(`condition %d missing "field"`, i)))
			}
			op, _ := cond["operator"].(string)
			if !filterOperators[op] {
				issues = append(issues, structureIssueWithHint(
					fmt.Sprintf("condition %d has unknown operator %q", i, op),
					"supported operators: ==, !=, >, <, >=, <=, in, contains, startsWith, endsWith"))
			}
		}
	}
	issues = append(issues, requireOutputPath(args)...)
	return issues
}

// executeFilterData retains array elements matching all conditions. An
// empty condition list is the identity.
func executeFilterData(_ context.Context, _ Env, args map[string]any) (any, error) {
	input, ok := args["inputPath"].([]any)
	if !ok {
		return nil, domain.NewDataError("FilterData input must be an array", "")
	}
	conditions, derr := argArray(args, "conditions")
	if derr != nil {
		return nil, derr
	}

	filtered := make([]any, 0, len(input))
	for _, item := range input {
		keep := true
		for _, c := range conditions {
			cond, ok := c.(map[string]any)
			if !ok {
				return nil, domain.NewValidationError("conditions must be objects")
			}
			field, derr := argString(cond, "field")
			if derr != nil {
				return nil, derr
			}
			operator, derr := argString(cond, "operator")
			if derr != nil {
				return nil, derr
			}

			var left any
			if obj, ok := item.(map[string]any); ok {
				left = obj[field]
			}
			match, err := evalComparison(left, operator, cond["value"])
			if err != nil {
				return nil, err
			}
			if !match {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}
