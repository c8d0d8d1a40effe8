// Package authz evaluates per-agent capability checks over parsed
// workflows using an embedded OPA policy. The policy receives the
// agent's allowed catalog and a flattened view of the workflow's
// operations and yields one violation per disallowed kind, host or
// credential reference.
package authz

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/rego"

	"github.com/flowgate/flowgate/pkg/domain"
)

const violationsQuery = "data.flowgate.authz.violations"

const policyModule = `package flowgate.authz

import rego.v1

violations contains v if {
	some op in input.operations
	not input.catalog.kinds[op.kind]
	v := {
		"operationId": op.id,
		"message": sprintf("operation kind %q is not permitted for this agent", [op.kind]),
		"suggestion": "use an operation kind from the agent's allowed catalog",
	}
}

host_allowed(h) if h in object.keys(input.catalog.hosts)

host_allowed(_) if "*" in object.keys(input.catalog.hosts)

violations contains v if {
	some op in input.operations
	op.kind == "ApiCall"
	op.host != ""
	not host_allowed(op.host)
	v := {
		"operationId": op.id,
		"message": sprintf("host %q is not permitted for this agent", [op.host]),
		"suggestion": "call one of the hosts listed in the agent's allowed catalog",
	}
}

violations contains v if {
	some op in input.operations
	some cred in op.credentials
	not cred in input.catalog.credentials
	v := {
		"operationId": op.id,
		"message": sprintf("credential %q is not permitted for this agent", [cred]),
		"suggestion": "reference a credential granted to this agent",
	}
}
`

// Checker runs the capability policy against workflows.
type Checker struct {
	mu       sync.Mutex
	prepared *rego.PreparedEvalQuery
}

// NewChecker compiles the embedded policy.
func NewChecker(ctx context.Context) (*Checker, error) {
	prepared, err := rego.New(
		rego.Query(violationsQuery),
		rego.Module("authz.rego", policyModule),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return &Checker{prepared: &prepared}, nil
}

type operationInput struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Host        string   `json:"host"`
	Credentials []string `json:"credentials"`
}

// CheckWorkflow evaluates every operation against the agent's catalog
// and returns one permission issue per violation, ordered by operation
// id.
func (c *Checker) CheckWorkflow(ctx context.Context, catalog *domain.AllowedCatalog, wf *domain.Workflow) ([]domain.Issue, error) {
	input := map[string]any{
		"catalog":    catalogInput(catalog),
		"operations": operationsInput(wf),
	}

	c.mu.Lock()
	results, err := c.prepared.Eval(ctx, rego.EvalInput(input))
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("evaluate authz policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("evaluate authz policy: unexpected result type %T", results[0].Expressions[0].Value)
	}

	issues := make([]domain.Issue, 0, len(raw))
	for _, item := range raw {
		v, ok := item.(map[string]any)
		if !ok {
			continue
		}
		opID, _ := v["operationId"].(string)
		message, _ := v["message"].(string)
		suggestion, _ := v["suggestion"].(string)
		issues = append(issues, domain.Issue{
			Severity:    domain.SeverityError,
			Category:    domain.IssuePermission,
			OperationID: opID,
			Message:     message,
			Suggestion:  suggestion,
		})
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].OperationID != issues[j].OperationID {
			return issues[i].OperationID < issues[j].OperationID
		}
		return issues[i].Message < issues[j].Message
	})
	return issues, nil
}

func catalogInput(catalog *domain.AllowedCatalog) map[string]any {
	kinds := make(map[string]bool, len(catalog.OperationKinds))
	for k, v := range catalog.OperationKinds {
		kinds[k] = v
	}
	hosts := make(map[string]any, len(catalog.APIs))
	for host, endpoints := range catalog.APIs {
		hosts[host] = endpoints
	}
	creds := make([]string, 0, len(catalog.Credentials))
	for _, spec := range catalog.Credentials {
		creds = append(creds, spec.ID)
	}
	return map[string]any{
		"kinds":       kinds,
		"hosts":       hosts,
		"credentials": creds,
	}
}

func operationsInput(wf *domain.Workflow) []operationInput {
	ids := make([]string, 0, len(wf.Operations))
	for id := range wf.Operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ops := make([]operationInput, 0, len(ids))
	for _, id := range ids {
		op := wf.Operations[id]
		ops = append(ops, operationInput{
			ID:          op.ID,
			Kind:        op.Kind,
			Host:        operationHost(op),
			Credentials: CollectCredentialIDs(op.Args),
		})
	}
	return ops
}

// operationHost extracts the target host of an ApiCall. A URL that does
// not parse yields an empty host; the structure pass reports it.
func operationHost(op *domain.Operation) string {
	if op.Kind != "ApiCall" {
		return ""
	}
	raw, _ := op.Args["url"].(string)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// CollectCredentialIDs walks an argument tree and returns every
// credential id referenced, in first-seen order.
func CollectCredentialIDs(v any) []string {
	var ids []string
	seen := make(map[string]bool)
	walkCredentials(v, func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	})
	if ids == nil {
		return []string{}
	}
	return ids
}

func walkCredentials(v any, visit func(string)) {
	switch val := v.(type) {
	case map[string]any:
		if id, ok := domain.CredentialRef(val); ok {
			visit(id)
			return
		}
		for _, child := range val {
			walkCredentials(child, visit)
		}
	case []any:
		for _, child := range val {
			walkCredentials(child, visit)
		}
	}
}
