package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flowgate/flowgate/pkg/domain"
)

const (
	defaultAPITimeoutMs = 30000
	maxResponseBytes    = 8 << 20
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

func newAPICallDescriptor(opts Options) *Descriptor {
	exec := &apiCallExecutor{client: opts.HTTPClient, logger: opts.Logger}
	return &Descriptor{
		Kind:      KindAPICall,
		Output:    OutputAny,
		Retryable: true,
		Cacheable: apiCallCacheable,
		Validate:  validateAPICallArgs,
		Execute:   exec.execute,
	}
}

// apiCallCacheable: GET requests with no credential reference in the body
// are deterministic enough to cache.
func apiCallCacheable(args map[string]any) bool {
	method, _ := args["method"].(string)
	if !strings.EqualFold(method, http.MethodGet) {
		return false
	}
	return !hasCredentialRef(args["body"])
}

func hasCredentialRef(v any) bool {
	if _, ok := domain.CredentialRef(v); ok {
		return true
	}
	switch val := v.(type) {
	case map[string]any:
		for _, item := range val {
			if hasCredentialRef(item) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if hasCredentialRef(item) {
				return true
			}
		}
	}
	return false
}

func validateAPICallArgs(args map[string]any) []domain.Issue {
	var issues []domain.Issue

	method, ok := args["method"].(string)
	if !ok || !allowedMethods[strings.ToUpper(method)] {
		issues = append(issues, structureIssueWithHint(
			fmt.Sprintf("invalid or missing method %v", args["method"]),
			"method must be one of GET, POST, PUT, DELETE, PATCH"))
	}
	if raw, ok := args["url"].(string); !ok || raw == "" {
		issues = append(issues, structureIssue(`missing required field "url"`))
	}
	if h, present := args["headers"]; present {
		if _, ok := h.(map[string]any); !ok {
			issues = append(issues, structureIssue(`field "headers" must be an object`))
		}
	}
	if t, present := args["timeoutMs"]; present {
		if n, ok := toNumber(t); !ok || n < 0 {
			issues = append(issues, structureIssue(`field "timeoutMs" must be a non-negative number`))
		}
	}
	issues = append(issues, requireOutputPath(args)...)
	return issues
}

type apiCallExecutor struct {
	client *http.Client
	logger *slog.Logger
}

func (e *apiCallExecutor) execute(ctx context.Context, _ Env, args map[string]any) (any, error) {
	method, derr := argString(args, "method")
	if derr != nil {
		return nil, derr
	}
	method = strings.ToUpper(method)

	rawURL, derr := argString(args, "url")
	if derr != nil {
		return nil, derr
	}
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid url %q", rawURL))
	}

	timeoutMs := float64(defaultAPITimeoutMs)
	if _, present := args["timeoutMs"]; present {
		if timeoutMs, derr = argNumber(args, "timeoutMs"); derr != nil {
			return nil, derr
		}
	}

	var bodyReader io.Reader
	if body, present := args["body"]; present && body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, domain.NewDataError("request body is not JSON-encodable", "")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, bodyReader)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("cannot build request: %v", err))
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, present := args["headers"]; present {
		obj, ok := headers.(map[string]any)
		if !ok {
			return nil, domain.NewValidationError(`field "headers" must be an object`)
		}
		for k, v := range obj {
			s, ok := v.(string)
			if !ok {
				return nil, domain.NewValidationError(fmt.Sprintf("header %q must resolve to a string", k))
			}
			req.Header.Set(k, s)
		}
	}

	e.logger.Debug("api call", "method", method, "host", target.Host)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err, target.Host, int64(timeoutMs))
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err, target.Host, int64(timeoutMs))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := domain.NewAPIError(
			fmt.Sprintf("upstream returned %d", resp.StatusCode), resp.StatusCode).
			WithContext("host", target.Host)
		if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
			apiErr.RetryAfterMs = retryAfter
		}
		return nil, apiErr
	}

	return map[string]any{
		"statusCode": resp.StatusCode,
		"headers":    flattenHeaders(resp.Header),
		"body":       decodeResponseBody(resp.Header.Get("Content-Type"), raw),
	}, nil
}

func classifyTransportError(parent context.Context, err error, host string, timeoutMs int64) *domain.Error {
	if parent.Err() != nil {
		return domain.NewCancellationError("api call cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(fmt.Sprintf("request to %s timed out", host), timeoutMs)
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return domain.NewTimeoutError(fmt.Sprintf("request to %s timed out", host), timeoutMs)
	}
	return domain.NewNetworkError(fmt.Sprintf("request to %s failed", host), host)
}

// decodeResponseBody parses JSON-typed responses and passes everything
// else through as raw text. A malformed body under a JSON content type is
// still returned as text rather than failing the operation.
func decodeResponseBody(contentType string, raw []byte) any {
	if strings.Contains(strings.ToLower(contentType), "json") {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

func flattenHeaders(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func parseRetryAfter(v string) int64 {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return int64(secs) * 1000
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Milliseconds()
		}
	}
	return 0
}
