package catalog

import (
	"context"
	"fmt"

	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
)

var conditionalOperators = map[string]bool{
	"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
	"exists": true, "empty": true,
}

func newConditionalDescriptor() *Descriptor {
	return &Descriptor{
		Kind:      KindConditional,
		Output:    OutputObject,
		Cacheable: cacheableNever,
		Validate:  validateConditionalArgs,
		Execute:   executeConditional,
	}
}

func validateConditionalArgs(args map[string]any) []domain.Issue {
	var issues []domain.Issue
	condition, ok := args["condition"].(map[string]any)
	if !ok {
		issues = append(issues, structureIssue(`missing or invalid field "condition" (must be an object)`))
	} else {
		if raw, ok := condition["path"].(string); !ok {
			issues = append(issues, structureIssue(`condition missing "path"`))
		} else if _, err := datamodel.ParsePath(raw); err != nil {
			issues = append(issues, structureIssue(fmt.Sprintf("invalid condition path %q: %v", raw, err)))
		}
		op, _ := condition["op"].(string)
		if !conditionalOperators[op] {
			issues = append(issues, structureIssueWithHint(
				fmt.Sprintf("unknown condition op %q", op),
				"supported ops: ==, !=, >, <, >=, <=, exists, empty"))
		}
		if op != "exists" && op != "empty" {
			if _, present := condition["value"]; !present {
				issues = append(issues, structureIssue(fmt.Sprintf("condition op %q requires a value", op)))
			}
		}
	}
	if _, ok := branchIDs(args, "ifTrue"); !ok {
		issues = append(issues, structureIssueWithHint(
			`missing or invalid field "ifTrue" (must be an array of operation ids)`,
			"Conditional branches gate operations listed in the outer order; inlined sub-workflows are not supported"))
	}
	if _, present := args["ifFalse"]; present {
		if _, ok := branchIDs(args, "ifFalse"); !ok {
			issues = append(issues, structureIssue(`field "ifFalse" must be an array of operation ids`))
		}
	}
	return issues
}

// branchIDs extracts a branch's operation id list.
func branchIDs(args map[string]any, key string) ([]string, bool) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, false
	}
	ids := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		ids[i] = s
	}
	return ids, true
}

// executeConditional evaluates the condition and gates the not-taken
// branch. The taken branch's operations still run at their own position
// in the declared order.
func executeConditional(_ context.Context, env Env, args map[string]any) (any, error) {
	condition, derr := argObject(args, "condition")
	if derr != nil {
		return nil, derr
	}
	rawPath, derr := argString(condition, "path")
	if derr != nil {
		return nil, derr
	}
	path, err := datamodel.ParsePath(rawPath)
	if err != nil {
		return nil, err
	}
	op, derr := argString(condition, "op")
	if derr != nil {
		return nil, derr
	}

	result, err := evalCondition(env, path, op, condition["value"])
	if err != nil {
		return nil, err
	}

	ifTrue, _ := branchIDs(args, "ifTrue")
	ifFalse, _ := branchIDs(args, "ifFalse")

	taken, skipped := ifTrue, ifFalse
	if !result {
		taken, skipped = ifFalse, ifTrue
	}
	env.SkipOperations(skipped)

	return map[string]any{
		"condition": result,
		"taken":     asAnySlice(taken),
		"skipped":   asAnySlice(skipped),
	}, nil
}

func evalCondition(env Env, path datamodel.Path, op string, value any) (bool, error) {
	switch op {
	case "exists":
		return env.Exists(path), nil
	case "empty":
		if !env.Exists(path) {
			return true, nil
		}
		v, err := env.Read(path)
		if err != nil {
			return false, err
		}
		switch val := v.(type) {
		case nil:
			return true, nil
		case string:
			return val == "", nil
		case []any:
			return len(val) == 0, nil
		case map[string]any:
			return len(val) == 0, nil
		default:
			return false, nil
		}
	default:
		left, err := env.Read(path)
		if err != nil {
			return false, err
		}
		match, cerr := evalComparison(left, op, value)
		if cerr != nil {
			return false, cerr
		}
		return match, nil
	}
}

func asAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
