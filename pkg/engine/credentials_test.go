package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/domain"
)

func credRef(id string) map[string]any {
	return map[string]any{"credentialRef": map[string]any{"id": id}}
}

func testResolver() *domain.StaticCredentialResolver {
	return &domain.StaticCredentialResolver{Credentials: map[string]struct {
		Value string
		Type  string
	}{
		"bearer-1": {Value: "tok-secret", Type: domain.CredentialBearerToken},
		"key-1":    {Value: "key-secret", Type: domain.CredentialAPIKey},
	}}
}

func TestInjectCredentialsFormatsByType(t *testing.T) {
	args := map[string]any{
		"headers": map[string]any{
			"Authorization": credRef("bearer-1"),
			"X-Api-Key":     credRef("key-1"),
		},
		"url": "https://api.example.com",
	}

	injected, used, err := injectCredentials(context.Background(), testResolver(), args)
	require.NoError(t, err)

	headers := injected["headers"].(map[string]any)
	assert.Equal(t, "Bearer tok-secret", headers["Authorization"])
	assert.Equal(t, "key-secret", headers["X-Api-Key"])
	assert.ElementsMatch(t, []string{"bearer-1", "key-1"}, used)

	// The original arguments still hold the references.
	_, isRef := domain.CredentialRef(args["headers"].(map[string]any)["Authorization"])
	assert.True(t, isRef)
}

func TestInjectCredentialsUnknownID(t *testing.T) {
	_, _, err := injectCredentials(context.Background(), testResolver(), map[string]any{
		"headers": map[string]any{"Authorization": credRef("nope")},
	})
	require.Error(t, err)
	assert.Equal(t, domain.TypeAuthorizationError, domain.AsError(err).Type)
}

func TestInjectCredentialsNilResolver(t *testing.T) {
	_, _, err := injectCredentials(context.Background(), nil, map[string]any{
		"headers": map[string]any{"Authorization": credRef("any")},
	})
	require.Error(t, err)
}

func TestInjectCredentialsNoRefsPassThrough(t *testing.T) {
	args := map[string]any{"url": "https://api.example.com", "n": float64(1)}
	injected, used, err := injectCredentials(context.Background(), nil, args)
	require.NoError(t, err)
	assert.Equal(t, args, injected)
	assert.Empty(t, used)
}

func TestMaskCredentials(t *testing.T) {
	masked := maskCredentials(map[string]any{
		"headers": map[string]any{"Authorization": credRef("bearer-1")},
		"body":    []any{credRef("key-1"), "plain"},
		"url":     "https://api.example.com",
	}).(map[string]any)

	assert.Equal(t, "__credential:bearer-1__", masked["headers"].(map[string]any)["Authorization"])
	assert.Equal(t, []any{"__credential:key-1__", "plain"}, masked["body"])
	assert.Equal(t, "https://api.example.com", masked["url"])
}

func TestFormatCredential(t *testing.T) {
	assert.Equal(t, "Bearer v", formatCredential("v", domain.CredentialBearerToken))
	assert.Equal(t, "v", formatCredential("v", domain.CredentialAPIKey))
	assert.Equal(t, "v", formatCredential("v", "custom"))
}
