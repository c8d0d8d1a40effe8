package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/domain"
)

func apiCallExec(t *testing.T) *apiCallExecutor {
	t.Helper()
	return &apiCallExecutor{client: http.DefaultClient, logger: testLogger()}
}

func TestAPICallJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "token-123", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[1,2]}`))
	}))
	defer server.Close()

	out, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method":  "get",
		"url":     server.URL + "/items",
		"headers": map[string]any{"X-Api-Key": "token-123"},
	})
	require.NoError(t, err)

	envelope := out.(map[string]any)
	assert.Equal(t, 200, envelope["statusCode"])
	assert.Equal(t, map[string]any{"items": []any{float64(1), float64(2)}}, envelope["body"])
}

func TestAPICallPostSendsJSONBody(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	out, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method": "POST",
		"url":    server.URL,
		"body":   map[string]any{"name": "ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "ada"}, received)
	assert.Equal(t, 201, out.(map[string]any)["statusCode"])
}

func TestAPICallNonJSONBodyIsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	out, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method": "GET",
		"url":    server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.(map[string]any)["body"])
}

func TestAPICallMalformedJSONFallsBackToText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"broken`))
	}))
	defer server.Close()

	out, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method": "GET",
		"url":    server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"broken`, out.(map[string]any)["body"])
}

func TestAPICallUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method": "GET",
		"url":    server.URL,
	})
	require.Error(t, err)
	derr := domain.AsError(err)
	assert.Equal(t, domain.TypeAPIError, derr.Type)
	assert.Equal(t, 503, derr.StatusCode)
	assert.True(t, derr.Recoverable)
	assert.Equal(t, int64(2000), derr.RetryAfterMs)
}

func TestAPICallClientErrorNotRecoverable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method": "GET",
		"url":    server.URL,
	})
	require.Error(t, err)
	assert.False(t, domain.AsError(err).Recoverable)
}

func TestAPICallTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method":    "GET",
		"url":       server.URL,
		"timeoutMs": float64(20),
	})
	require.Error(t, err)
	assert.Equal(t, domain.TypeTimeoutError, domain.AsError(err).Type)
}

func TestAPICallConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := apiCallExec(t).execute(context.Background(), nil, map[string]any{
		"method": "GET",
		"url":    url,
	})
	require.Error(t, err)
	assert.Equal(t, domain.TypeNetworkError, domain.AsError(err).Type)
}

func TestAPICallCacheable(t *testing.T) {
	assert.True(t, apiCallCacheable(map[string]any{"method": "GET"}))
	assert.True(t, apiCallCacheable(map[string]any{"method": "get"}))
	assert.False(t, apiCallCacheable(map[string]any{"method": "POST"}))
	assert.False(t, apiCallCacheable(map[string]any{
		"method": "GET",
		"body":   map[string]any{"credentialRef": map[string]any{"id": "k"}},
	}))
}

func TestValidateAPICallArgs(t *testing.T) {
	issues := validateAPICallArgs(map[string]any{
		"method":     "GET",
		"url":        "https://api.example.com/items",
		"outputPath": "/workflow/items",
	})
	assert.Empty(t, issues)

	issues = validateAPICallArgs(map[string]any{
		"method":     "TRACE",
		"url":        "https://api.example.com",
		"outputPath": "/workflow/x",
	})
	require.NotEmpty(t, issues)

	issues = validateAPICallArgs(map[string]any{
		"method":     "GET",
		"outputPath": "/workflow/x",
	})
	require.NotEmpty(t, issues)
}
