package domain

import (
	"encoding/json"
	"regexp"
	"time"
)

// Message type markers used on the JSONL wire.
const (
	MessageOperationUpdate = "operationUpdate"
	MessageBeginExecution  = "beginExecution"
)

// OperationIDPattern constrains operation identifiers on the wire.
var OperationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// OperationDefinition introduces or replaces a single operation in the
// workflow stream. Operation carries exactly one key, the operation kind,
// whose value is the argument payload for that kind.
type OperationDefinition struct {
	Type        string                     `json:"type"`
	OperationID string                     `json:"operationId"`
	Operation   map[string]json.RawMessage `json:"operation"`
}

// BeginExecution terminates the stream and fixes the execution order.
// Exactly one per workflow; it must be the last message.
type BeginExecution struct {
	Type           string   `json:"type"`
	ExecutionID    string   `json:"executionId"`
	OperationOrder []string `json:"operationOrder"`
}

// Workflow is the parsed form of a JSONL workflow stream.
type Workflow struct {
	ExecutionID string
	Order       []string
	Operations  map[string]*Operation
	// Defined preserves definition order for deterministic iteration.
	Defined []string
	// Hash is the hex SHA-256 of the raw workflow bytes.
	Hash string
}

// OpStatus is the lifecycle state of an operation record.
type OpStatus string

const (
	OpPending OpStatus = "pending"
	OpRunning OpStatus = "running"
	OpSuccess OpStatus = "success"
	OpFailed  OpStatus = "failed"
	OpSkipped OpStatus = "skipped"
)

// Operation is the runtime record for a single declared operation.
// It is created at parse time and mutated only by the executor.
type Operation struct {
	ID         string
	Kind       string
	Args       map[string]any
	Status     OpStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Result     any
	Err        *Error
	// FromCache marks results served by the result cache.
	FromCache bool
}

// Duration returns the wall time the operation spent running, zero until
// it finished.
func (o *Operation) Duration() time.Duration {
	if o.StartedAt.IsZero() || o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// ExecStatus is the aggregate state of an execution.
type ExecStatus string

const (
	ExecParsed         ExecStatus = "parsed"
	ExecValidated      ExecStatus = "validated"
	ExecRunning        ExecStatus = "running"
	ExecSuccess        ExecStatus = "success"
	ExecPartialSuccess ExecStatus = "partial_success"
	ExecFailed         ExecStatus = "failed"
)

// ExecutionRecord tracks one workflow execution end to end. Owned by the
// executor; shared components only ever see copies via audit events.
type ExecutionRecord struct {
	ExecutionID  string
	AgentID      string
	WorkflowHash string
	Operations   []*Operation
	Status       ExecStatus
	StartedAt    time.Time
	FinishedAt   time.Time
}

// TotalDuration returns the end-to-end wall time of the execution.
func (r *ExecutionRecord) TotalDuration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CredentialRefKey is the marker key for credential references embedded in
// operation arguments: {"credentialRef": {"id": "..."}}.
const CredentialRefKey = "credentialRef"

// CredentialRef extracts the credential id from a value if it is a
// credential reference literal, returning ok=false otherwise.
func CredentialRef(v any) (id string, ok bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	ref, ok := m[CredentialRefKey].(map[string]any)
	if !ok {
		return "", false
	}
	id, ok = ref["id"].(string)
	return id, ok && id != ""
}
