package datamodel

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// templatePattern matches {/workflow/...} substrings embedded in longer
// strings, e.g. "https://api.example.com/users/{/workflow/user.id}".
var templatePattern = regexp.MustCompile(`\{(/workflow[^{}]*)\}`)

// SkipFunc decides whether the value under the given argument key is
// exempt from reference substitution. Write targets (outputPath) and
// checked paths (Conditional condition.path) stay literal.
type SkipFunc func(key string) bool

// SkipOutputPath is the default skip rule.
func SkipOutputPath(key string) bool { return key == "outputPath" }

// CollectRefs walks an argument tree and returns every reference path it
// would substitute: bare path strings and {path} templates. Invalid bare
// strings that merely start with /workflow are reported too so the
// validator can reject them early.
func CollectRefs(args any, skip SkipFunc) []Path {
	var refs []Path
	walkRefs(args, "", skip, &refs)
	return refs
}

func walkRefs(v any, key string, skip SkipFunc, refs *[]Path) {
	if skip != nil && skip(key) {
		return
	}
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			walkRefs(item, k, skip, refs)
		}
	case []any:
		for _, item := range val {
			walkRefs(item, key, skip, refs)
		}
	case string:
		if IsPath(val) {
			p, _ := ParsePath(val)
			*refs = append(*refs, p)
			return
		}
		for _, m := range templatePattern.FindAllStringSubmatch(val, -1) {
			if p, err := ParsePath(m[1]); err == nil {
				*refs = append(*refs, p)
			}
		}
	}
}

// ResolveRefs returns a copy of args with every bare path string replaced
// by the referenced value and every {path} template replaced by the
// referenced value's string form. Missing references surface the
// underlying DataError.
func ResolveRefs(args map[string]any, tree *Tree, skip SkipFunc) (map[string]any, error) {
	resolved, err := resolveValue(args, "", tree, skip)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]any), nil
}

func resolveValue(v any, key string, tree *Tree, skip SkipFunc) (any, error) {
	if skip != nil && skip(key) {
		return Copy(v), nil
	}
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := resolveValue(item, k, tree, skip)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := resolveValue(item, key, tree, skip)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case string:
		return resolveString(val, tree)
	default:
		return v, nil
	}
}

func resolveString(s string, tree *Tree) (any, error) {
	if IsPath(s) {
		p, err := ParsePath(s)
		if err != nil {
			return nil, err
		}
		return tree.Read(p)
	}

	var substErr error
	out := templatePattern.ReplaceAllStringFunc(s, func(m string) string {
		if substErr != nil {
			return m
		}
		p, err := ParsePath(m[1 : len(m)-1])
		if err != nil {
			substErr = err
			return m
		}
		v, err := tree.Read(p)
		if err != nil {
			substErr = err
			return m
		}
		return Stringify(v)
	})
	if substErr != nil {
		return nil, substErr
	}
	return out, nil
}

// Stringify renders a JSON-shaped value for template substitution.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// HasTemplate reports whether s embeds at least one {path} template.
func HasTemplate(s string) bool {
	return strings.Contains(s, "{"+Root) && templatePattern.MatchString(s)
}
