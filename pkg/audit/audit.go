// Package audit records execution and credential events. Sinks are
// append-only; query support exists for operators, not for the
// execution path.
package audit

import (
	"context"
	"sync"

	"github.com/flowgate/flowgate/pkg/domain"
)

// MemoryLog keeps events in memory. It backs tests and single-process
// deployments that do not need durable audit trails.
type MemoryLog struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewMemoryLog creates an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, event domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Events returns a snapshot of all recorded events.
func (l *MemoryLog) Events() []domain.AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// ByExecution returns the events recorded for one execution, in append
// order.
func (l *MemoryLog) ByExecution(executionID string) []domain.AuditEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.AuditEvent
	for _, e := range l.events {
		if e.ExecutionID == executionID {
			out = append(out, e)
		}
	}
	return out
}

// MultiLog fans events out to several sinks; the first sink error wins
// but all sinks still receive the event.
type MultiLog struct {
	sinks []domain.AuditLog
}

// NewMultiLog combines audit sinks.
func NewMultiLog(sinks ...domain.AuditLog) *MultiLog {
	return &MultiLog{sinks: sinks}
}

func (l *MultiLog) Append(ctx context.Context, event domain.AuditEvent) error {
	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
