package domain

import (
	"context"
	"time"
)

// Audit event kinds.
const (
	EventExecutionStarted  = "ExecutionStarted"
	EventExecutionFinished = "ExecutionFinished"
	EventOperationStarted  = "OperationStarted"
	EventOperationFinished = "OperationFinished"
	EventCredentialUsed    = "CredentialUsed"
)

// AuditEvent is the union carried by the audit log. Fields not relevant to
// a kind stay zero. ArgsDigest is a hash of the sanitized arguments;
// credential plaintext and Authorization-style header values never appear
// anywhere in an event.
type AuditEvent struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
	ExecutionID   string    `json:"executionId"`
	AgentID       string    `json:"agentId,omitempty"`
	WorkflowHash  string    `json:"workflowHash,omitempty"`
	OperationID   string    `json:"operationId,omitempty"`
	OperationKind string    `json:"operationKind,omitempty"`
	CredentialID  string    `json:"credentialId,omitempty"`
	Status        string    `json:"status,omitempty"`
	DurationMs    int64     `json:"durationMs,omitempty"`
	ArgsDigest    string    `json:"argsDigest,omitempty"`
	Error         *Error    `json:"error,omitempty"`
}

// AuditLog is an append-only sink for audit events. Append is atomic and
// preserves per-execution event order; the engine never reads events back.
type AuditLog interface {
	Append(ctx context.Context, event AuditEvent) error
}
