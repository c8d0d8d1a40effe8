package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/domain"
)

func newTestChecker(t *testing.T) *Checker {
	t.Helper()
	checker, err := NewChecker(context.Background())
	require.NoError(t, err)
	return checker
}

func testCatalog() *domain.AllowedCatalog {
	return &domain.AllowedCatalog{
		OperationKinds: map[string]bool{"ApiCall": true, "FilterData": true},
		APIs:           map[string][]string{"api.example.com": nil},
		Credentials:    []domain.CredentialSpec{{ID: "key-1", Type: "api-key"}},
	}
}

func workflowWith(ops map[string]*domain.Operation) *domain.Workflow {
	for id, op := range ops {
		op.ID = id
	}
	order := make([]string, 0, len(ops))
	for id := range ops {
		order = append(order, id)
	}
	return &domain.Workflow{ExecutionID: "e1", Order: order, Operations: ops}
}

func TestCheckWorkflowAllows(t *testing.T) {
	checker := newTestChecker(t)
	issues, err := checker.CheckWorkflow(context.Background(), testCatalog(), workflowWith(map[string]*domain.Operation{
		"fetch": {Kind: "ApiCall", Args: map[string]any{
			"method": "GET",
			"url":    "https://api.example.com/items",
			"headers": map[string]any{
				"X-Api-Key": map[string]any{"credentialRef": map[string]any{"id": "key-1"}},
			},
		}},
		"filter": {Kind: "FilterData", Args: map[string]any{"inputPath": "/workflow/items"}},
	}))
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestCheckWorkflowDisallowedKind(t *testing.T) {
	checker := newTestChecker(t)
	issues, err := checker.CheckWorkflow(context.Background(), testCatalog(), workflowWith(map[string]*domain.Operation{
		"wait": {Kind: "Wait", Args: map[string]any{"duration": float64(0)}},
	}))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, domain.IssuePermission, issues[0].Category)
	assert.Equal(t, "wait", issues[0].OperationID)
	assert.Contains(t, issues[0].Message, `"Wait"`)
}

func TestCheckWorkflowDisallowedHost(t *testing.T) {
	checker := newTestChecker(t)
	issues, err := checker.CheckWorkflow(context.Background(), testCatalog(), workflowWith(map[string]*domain.Operation{
		"fetch": {Kind: "ApiCall", Args: map[string]any{
			"method": "GET",
			"url":    "https://EVIL.example.net/steal",
		}},
	}))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "evil.example.net")
}

func TestCheckWorkflowWildcardHost(t *testing.T) {
	checker := newTestChecker(t)
	catalog := testCatalog()
	catalog.APIs = map[string][]string{"*": nil}

	issues, err := checker.CheckWorkflow(context.Background(), catalog, workflowWith(map[string]*domain.Operation{
		"fetch": {Kind: "ApiCall", Args: map[string]any{
			"method": "GET",
			"url":    "https://anything.example.org/path",
		}},
	}))
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestCheckWorkflowDisallowedCredential(t *testing.T) {
	checker := newTestChecker(t)
	issues, err := checker.CheckWorkflow(context.Background(), testCatalog(), workflowWith(map[string]*domain.Operation{
		"fetch": {Kind: "ApiCall", Args: map[string]any{
			"method": "GET",
			"url":    "https://api.example.com/items",
			"headers": map[string]any{
				"Authorization": map[string]any{"credentialRef": map[string]any{"id": "other-key"}},
			},
		}},
	}))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "other-key")
}

func TestCheckWorkflowIssuesAreOrdered(t *testing.T) {
	checker := newTestChecker(t)
	issues, err := checker.CheckWorkflow(context.Background(), testCatalog(), workflowWith(map[string]*domain.Operation{
		"b": {Kind: "Wait", Args: map[string]any{"duration": float64(0)}},
		"a": {Kind: "Loop", Args: map[string]any{"inputPath": "/workflow/x", "operations": []any{"b"}}},
	}))
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "a", issues[0].OperationID)
	assert.Equal(t, "b", issues[1].OperationID)
}

func TestCollectCredentialIDs(t *testing.T) {
	ids := CollectCredentialIDs(map[string]any{
		"headers": map[string]any{
			"Authorization": map[string]any{"credentialRef": map[string]any{"id": "a"}},
		},
		"body": []any{
			map[string]any{"credentialRef": map[string]any{"id": "b"}},
			map[string]any{"credentialRef": map[string]any{"id": "a"}},
		},
	})
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	assert.Empty(t, CollectCredentialIDs(map[string]any{"plain": "value"}))
}
