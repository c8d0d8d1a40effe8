package engine

import (
	"context"
	"fmt"

	"github.com/flowgate/flowgate/pkg/domain"
)

// formatCredential renders a resolved credential per its type.
func formatCredential(value, credType string) string {
	switch credType {
	case domain.CredentialBearerToken:
		return "Bearer " + value
	case domain.CredentialAPIKey:
		return value
	default:
		return value
	}
}

// credentialPlaceholder is the stable stand-in used wherever arguments
// are hashed or logged; resolved values must never reach those paths.
func credentialPlaceholder(id string) string {
	return fmt.Sprintf("__credential:%s__", id)
}

// maskCredentials returns a copy of args with every credential reference
// replaced by its placeholder string. Cache keys and audit digests are
// computed over this view.
func maskCredentials(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if id, ok := domain.CredentialRef(val); ok {
			return credentialPlaceholder(id)
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = maskCredentials(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = maskCredentials(item)
		}
		return out
	default:
		return v
	}
}

// injectCredentials returns a copy of args with every credential
// reference replaced by its formatted plaintext value, plus the ids that
// were resolved. The result is handed directly to the executor and is
// never stored.
func injectCredentials(ctx context.Context, resolver domain.CredentialResolver, args map[string]any) (map[string]any, []string, error) {
	var used []string
	resolved, err := resolveCredentialValue(ctx, resolver, args, &used)
	if err != nil {
		return nil, nil, err
	}
	return resolved.(map[string]any), used, nil
}

func resolveCredentialValue(ctx context.Context, resolver domain.CredentialResolver, v any, used *[]string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if id, ok := domain.CredentialRef(val); ok {
			if resolver == nil {
				return nil, domain.NewAuthorizationError("no credential resolver configured", id)
			}
			value, credType, err := resolver.Resolve(ctx, id)
			if err != nil {
				return nil, domain.AsError(err).WithContext("credentialId", id)
			}
			*used = append(*used, id)
			return formatCredential(value, credType), nil
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := resolveCredentialValue(ctx, resolver, item, used)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := resolveCredentialValue(ctx, resolver, item, used)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
