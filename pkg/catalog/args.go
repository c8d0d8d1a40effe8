package catalog

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
)

// Argument extraction helpers shared by the kind executors. All arguments
// arrive JSON-decoded: numbers are float64, objects map[string]any.

func argString(args map[string]any, key string) (string, *domain.Error) {
	v, ok := args[key]
	if !ok {
		return "", domain.NewValidationError(fmt.Sprintf("missing required field %q", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", domain.NewValidationError(fmt.Sprintf("field %q must be a string", key))
	}
	return s, nil
}

func argNumber(args map[string]any, key string) (float64, *domain.Error) {
	v, ok := args[key]
	if !ok {
		return 0, domain.NewValidationError(fmt.Sprintf("missing required field %q", key))
	}
	n, ok := toNumber(v)
	if !ok {
		return 0, domain.NewValidationError(fmt.Sprintf("field %q must be a number", key))
	}
	return n, nil
}

func argArray(args map[string]any, key string) ([]any, *domain.Error) {
	v, ok := args[key]
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("missing required field %q", key))
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, domain.NewDataError(fmt.Sprintf("field %q must be an array", key), "")
	}
	return arr, nil
}

func argObject(args map[string]any, key string) (map[string]any, *domain.Error) {
	v, ok := args[key]
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("missing required field %q", key))
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("field %q must be an object", key))
	}
	return obj, nil
}

func argStringSlice(args map[string]any, key string) ([]string, *domain.Error) {
	arr, err := argArray(args, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("field %q must contain only strings", key))
		}
		out[i] = s
	}
	return out, nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// deepEqual compares two JSON-shaped values, treating numerically equal
// numbers as equal regardless of their Go representation.
func deepEqual(a, b any) bool {
	if an, aok := toNumber(a); aok {
		bn, bok := toNumber(b)
		return bok && an == bn
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered returns -1/0/1 for <, ==, > over numbers or strings;
// ok=false when the two values are not comparable.
func compareOrdered(a, b any) (int, bool) {
	if an, aok := toNumber(a); aok {
		bn, bok := toNumber(b)
		if !bok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	return strings.Compare(as, bs), true
}

// evalComparison applies a comparison operator from the FilterData /
// Conditional operator sets.
func evalComparison(left any, operator string, right any) (bool, *domain.Error) {
	switch operator {
	case "==":
		return deepEqual(left, right), nil
	case "!=":
		return !deepEqual(left, right), nil
	case ">", "<", ">=", "<=":
		cmp, ok := compareOrdered(left, right)
		if !ok {
			return false, nil
		}
		switch operator {
		case ">":
			return cmp > 0, nil
		case "<":
			return cmp < 0, nil
		case ">=":
			return cmp >= 0, nil
		default:
			return cmp <= 0, nil
		}
	case "in":
		arr, ok := right.([]any)
		if !ok {
			return false, domain.NewDataError(`operator "in" requires an array right-hand side`, "")
		}
		for _, item := range arr {
			if deepEqual(left, item) {
				return true, nil
			}
		}
		return false, nil
	case "contains":
		switch l := left.(type) {
		case string:
			s, ok := right.(string)
			return ok && strings.Contains(l, s), nil
		case []any:
			for _, item := range l {
				if deepEqual(item, right) {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, nil
		}
	case "startsWith":
		l, lok := left.(string)
		r, rok := right.(string)
		return lok && rok && strings.HasPrefix(l, r), nil
	case "endsWith":
		l, lok := left.(string)
		r, rok := right.(string)
		return lok && rok && strings.HasSuffix(l, r), nil
	default:
		return false, domain.NewValidationError(fmt.Sprintf("unknown operator %q", operator))
	}
}

// requireOutputPath checks an outputPath argument parses as a writable
// path.
func requireOutputPath(args map[string]any) []domain.Issue {
	var issues []domain.Issue
	raw, ok := args["outputPath"].(string)
	if !ok || raw == "" {
		issues = append(issues, domain.Issue{
			Severity: domain.SeverityError,
			Category: domain.IssueStructure,
			Message:  `missing required field "outputPath"`,
		})
		return issues
	}
	if _, err := datamodel.ParsePath(raw); err != nil {
		issues = append(issues, domain.Issue{
			Severity:   domain.SeverityError,
			Category:   domain.IssueStructure,
			Message:    fmt.Sprintf("invalid outputPath %q: %v", raw, err),
			Suggestion: "outputPath must start with /workflow/",
		})
	}
	return issues
}

func structureIssue(message string) domain.Issue {
	return domain.Issue{
		Severity: domain.SeverityError,
		Category: domain.IssueStructure,
		Message:  message,
	}
}

func structureIssueWithHint(message, suggestion string) domain.Issue {
	return domain.Issue{
		Severity:   domain.SeverityError,
		Category:   domain.IssueStructure,
		Message:    message,
		Suggestion: suggestion,
	}
}
