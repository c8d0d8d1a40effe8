package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
)

var transformKinds = map[string]bool{
	"map": true, "sort": true, "group": true, "aggregate": true, "select": true,
}

var aggregateOps = map[string]bool{
	"sum": true, "min": true, "max": true, "avg": true, "count": true,
}

func newTransformDataDescriptor() *Descriptor {
	return &Descriptor{
		Kind:           KindTransformData,
		Output:         OutputAny,
		OutputFor:      transformOutputType,
		Cacheable:      cacheableAlways,
		ArrayInputKeys: []string{"inputPath"},
		Validate:       validateTransformDataArgs,
		Execute:        executeTransformData,
	}
}

func transformOutputType(args map[string]any) OutputType {
	switch args["transform"] {
	case "map", "sort", "select":
		return OutputArray
	case "group":
		return OutputObject
	case "aggregate":
		return OutputScalar
	default:
		return OutputAny
	}
}

func validateTransformDataArgs(args map[string]any) []domain.Issue {
	var issues []domain.Issue
	if _, ok := args["inputPath"]; !ok {
		issues = append(issues, structureIssue(`missing required field "inputPath"`))
	}
	transform, _ := args["transform"].(string)
	if !transformKinds[transform] {
		issues = append(issues, structureIssueWithHint(
			fmt.Sprintf("unknown transform %q", transform),
			"supported transforms: map, sort, group, aggregate, select"))
	}
	config, ok := args["config"].(map[string]any)
	if !ok {
		issues = append(issues, structureIssue(`missing or invalid field "config" (must be an object)`))
		issues = append(issues, requireOutputPath(args)...)
		return issues
	}

	switch transform {
	case "sort", "group":
		if _, ok := config["field"].(string); !ok {
			issues = append(issues, structureIssue(fmt.Sprintf(`transform %q requires config.field`, transform)))
		}
	case "aggregate":
		op, _ := config["operation"].(string)
		if !aggregateOps[op] {
			issues = append(issues, structureIssueWithHint(
				fmt.Sprintf("unknown aggregate operation %q", op),
				"supported operations: sum, min, max, avg, count"))
		}
		if op != "count" {
			if _, ok := config["field"].(string); !ok {
				issues = append(issues, structureIssue(`aggregate requires config.field for operations other than count`))
			}
		}
	case "select":
		if _, ok := config["fields"].([]any); !ok {
			issues = append(issues, structureIssue(`transform "select" requires config.fields (array of field names)`))
		}
	}
	issues = append(issues, requireOutputPath(args)...)
	return issues
}

func executeTransformData(_ context.Context, _ Env, args map[string]any) (any, error) {
	input, ok := args["inputPath"].([]any)
	if !ok {
		return nil, domain.NewDataError("TransformData input must be an array", "")
	}
	transform, derr := argString(args, "transform")
	if derr != nil {
		return nil, derr
	}
	config, derr := argObject(args, "config")
	if derr != nil {
		return nil, derr
	}

	switch transform {
	case "map":
		return transformMap(input, config)
	case "sort":
		return transformSort(input, config)
	case "group":
		return transformGroup(input, config)
	case "aggregate":
		return transformAggregate(input, config)
	case "select":
		return transformSelect(input, config)
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unknown transform %q", transform))
	}
}

// transformMap applies a fixed set of per-field rewrites to each object
// element: rename (old→new key), set (constant values), drop (removed
// keys). There are no user expressions. Non-object elements pass through.
func transformMap(input []any, config map[string]any) (any, error) {
	renames, _ := config["rename"].(map[string]any)
	sets, _ := config["set"].(map[string]any)
	var drops []string
	if rawDrops, ok := config["drop"].([]any); ok {
		for _, d := range rawDrops {
			if s, ok := d.(string); ok {
				drops = append(drops, s)
			}
		}
	}

	out := make([]any, 0, len(input))
	for _, item := range input {
		obj, ok := item.(map[string]any)
		if !ok {
			out = append(out, item)
			continue
		}
		mapped := make(map[string]any, len(obj))
		for k, v := range obj {
			mapped[k] = v
		}
		for old, newName := range renames {
			name, ok := newName.(string)
			if !ok {
				return nil, domain.NewValidationError("map rename targets must be strings")
			}
			if v, present := mapped[old]; present {
				delete(mapped, old)
				mapped[name] = v
			}
		}
		for k, v := range sets {
			mapped[k] = v
		}
		for _, k := range drops {
			delete(mapped, k)
		}
		out = append(out, mapped)
	}
	return out, nil
}

// transformSort stable-sorts by config.field. Elements missing the field
// sort last; ties preserve input order.
func transformSort(input []any, config map[string]any) (any, error) {
	field, derr := argString(config, "field")
	if derr != nil {
		return nil, derr
	}
	descending := config["order"] == "desc"

	out := make([]any, len(input))
	copy(out, input)
	sort.SliceStable(out, func(i, j int) bool {
		vi, iok := fieldValue(out[i], field)
		vj, jok := fieldValue(out[j], field)
		if !iok || !jok {
			// Missing field sorts last regardless of direction.
			return iok && !jok
		}
		cmp, ok := compareOrdered(vi, vj)
		if !ok {
			cmp, ok = compareOrdered(datamodel.Stringify(vi), datamodel.Stringify(vj))
			if !ok {
				return false
			}
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return out, nil
}

func fieldValue(item any, field string) (any, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return nil, false
	}
	v, present := obj[field]
	return v, present
}

// transformGroup buckets elements by the string form of config.field.
// Elements missing the field group under "null".
func transformGroup(input []any, config map[string]any) (any, error) {
	field, derr := argString(config, "field")
	if derr != nil {
		return nil, derr
	}
	groups := make(map[string]any)
	for _, item := range input {
		key := "null"
		if v, ok := fieldValue(item, field); ok {
			key = datamodel.Stringify(v)
		}
		bucket, _ := groups[key].([]any)
		groups[key] = append(bucket, item)
	}
	return groups, nil
}

func transformAggregate(input []any, config map[string]any) (any, error) {
	op, derr := argString(config, "operation")
	if derr != nil {
		return nil, derr
	}
	if op == "count" {
		return float64(len(input)), nil
	}

	field, derr := argString(config, "field")
	if derr != nil {
		return nil, derr
	}
	var values []float64
	for _, item := range input {
		if v, ok := fieldValue(item, field); ok {
			if n, ok := toNumber(v); ok {
				values = append(values, n)
			}
		}
	}
	if len(values) == 0 {
		if op == "sum" {
			return float64(0), nil
		}
		return nil, domain.NewDataError(
			fmt.Sprintf("aggregate %q found no numeric values for field %q", op, field), "")
	}

	switch op {
	case "sum", "avg":
		total := 0.0
		for _, v := range values {
			total += v
		}
		if op == "avg" {
			return total / float64(len(values)), nil
		}
		return total, nil
	case "min":
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "max":
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("unknown aggregate operation %q", op))
	}
}

// transformSelect projects each object element down to config.fields.
func transformSelect(input []any, config map[string]any) (any, error) {
	fields, derr := argStringSlice(config, "fields")
	if derr != nil {
		return nil, derr
	}
	out := make([]any, 0, len(input))
	for _, item := range input {
		obj, ok := item.(map[string]any)
		if !ok {
			out = append(out, item)
			continue
		}
		projected := make(map[string]any, len(fields))
		for _, f := range fields {
			if v, present := obj[f]; present {
				projected[f] = v
			}
		}
		out = append(out, projected)
	}
	return out, nil
}
