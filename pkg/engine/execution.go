package engine

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowgate/flowgate/pkg/cache"
	"github.com/flowgate/flowgate/pkg/catalog"
	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
)

// execution is the per-run state. It implements catalog.Env so Loop and
// Conditional operations can dispatch and gate through the same
// pipeline as the outer order.
type execution struct {
	engine  *Engine
	agentID string
	wf      *domain.Workflow
	record  *domain.ExecutionRecord
	tree    *datamodel.Tree
	skipped map[string]bool
	active  map[string]bool
	// skippedOutputs collects the outputPath of every skipped operation
	// so skips propagate to operations reading those paths.
	skippedOutputs []datamodel.Path
}

func newExecution(e *Engine, agentID string, wf *domain.Workflow) *execution {
	record := &domain.ExecutionRecord{
		ExecutionID:  wf.ExecutionID,
		AgentID:      agentID,
		WorkflowHash: wf.Hash,
		Status:       domain.ExecValidated,
	}
	for _, id := range wf.Defined {
		record.Operations = append(record.Operations, wf.Operations[id])
	}
	return &execution{
		engine:  e,
		agentID: agentID,
		wf:      wf,
		record:  record,
		tree:    datamodel.NewTree(e.cfg.Limits.MaxDataModelBytes),
		skipped: make(map[string]bool),
		active:  make(map[string]bool),
	}
}

// run drives the declared order to completion and builds the response.
func (x *execution) run(ctx context.Context, format domain.DataFormat) *domain.ExecutionResponse {
	x.record.Status = domain.ExecRunning
	x.record.StartedAt = time.Now()
	x.emit(ctx, domain.AuditEvent{
		Kind:         domain.EventExecutionStarted,
		WorkflowHash: x.wf.Hash,
	})

	aborted := false
	for i, id := range x.wf.Order {
		op := x.wf.Operations[id]
		if x.skipped[id] {
			x.markSkipped(ctx, op)
			continue
		}
		if _, err := x.runOperation(ctx, op); err != nil {
			for _, rest := range x.wf.Order[i+1:] {
				if restOp := x.wf.Operations[rest]; restOp.Status == domain.OpPending {
					x.markSkipped(ctx, restOp)
				}
			}
			aborted = true
			break
		}
	}

	x.record.FinishedAt = time.Now()
	x.record.Status = x.finalStatus(aborted)
	x.emit(ctx, domain.AuditEvent{
		Kind:         domain.EventExecutionFinished,
		WorkflowHash: x.wf.Hash,
		Status:       string(x.record.Status),
		DurationMs:   x.record.TotalDuration().Milliseconds(),
	})
	x.engine.metrics.RecordExecution(string(x.record.Status), x.record.TotalDuration())

	return x.buildResponse(format)
}

func (x *execution) finalStatus(aborted bool) domain.ExecStatus {
	succeeded := 0
	for _, op := range x.record.Operations {
		if op.Status == domain.OpSuccess {
			succeeded++
		}
	}
	if !aborted {
		return domain.ExecSuccess
	}
	if succeeded > 0 {
		return domain.ExecPartialSuccess
	}
	return domain.ExecFailed
}

// runOperation executes one operation through the full pipeline:
// reference resolution, cache lookup, rate limit, credential injection,
// dispatch with retries, output write, cache fill and audit. An
// operation reading a skipped upstream output is itself skipped.
func (x *execution) runOperation(ctx context.Context, op *domain.Operation) (any, error) {
	e := x.engine
	if x.readsSkippedOutput(op) {
		x.markSkipped(ctx, op)
		return nil, nil
	}
	op.Status = domain.OpRunning
	op.StartedAt = time.Now()

	ctx, span := e.tracer.Start(ctx, "operation.execute", trace.WithAttributes(
		attribute.String("operation.id", op.ID),
		attribute.String("operation.kind", op.Kind),
	))
	defer span.End()

	x.emit(ctx, domain.AuditEvent{
		Kind:          domain.EventOperationStarted,
		OperationID:   op.ID,
		OperationKind: op.Kind,
	})

	desc, ok := e.catalog.Get(op.Kind)
	if !ok {
		return nil, x.fail(ctx, op, domain.NewValidationError("unknown operation kind "+op.Kind))
	}

	resolved, err := datamodel.ResolveRefs(op.Args, x.tree, catalog.RefSkipFunc(op.Kind))
	if err != nil {
		return nil, x.fail(ctx, op, err)
	}

	masked, _ := maskCredentials(resolved).(map[string]any)
	digest := cache.Key(op.Kind, masked)

	cacheable := desc.Cacheable != nil && desc.Cacheable(op.Args) && e.cache.TTLFor(op.Kind) > 0
	if cacheable {
		if cached, hit := e.cache.Get(digest); hit {
			e.metrics.RecordCacheHit(op.Kind)
			op.FromCache = true
			op.Result = cached
			return x.finishSuccess(ctx, op, resolved, digest)
		}
		e.metrics.RecordCacheMiss(op.Kind)
	}

	if derr := e.limiter.Acquire(ctx, x.agentID, op.Kind); derr != nil {
		if derr.Type == domain.TypeRateLimitError {
			e.metrics.RecordRateLimited(x.agentID)
		}
		return nil, x.fail(ctx, op, derr)
	}

	injected, usedCreds, err := injectCredentials(ctx, e.creds, resolved)
	if err != nil {
		return nil, x.fail(ctx, op, err)
	}
	for _, credID := range usedCreds {
		x.emit(ctx, domain.AuditEvent{
			Kind:          domain.EventCredentialUsed,
			OperationID:   op.ID,
			OperationKind: op.Kind,
			CredentialID:  credID,
		})
	}

	result, err := x.dispatch(ctx, op, desc, injected)
	if err != nil {
		return nil, x.fail(ctx, op, err)
	}

	op.Result = result
	if cacheable {
		e.cache.Put(digest, op.Kind, result)
	}
	return x.finishSuccess(ctx, op, resolved, digest)
}

// dispatch runs the executor, applying the retry policy to retryable
// kinds and the per-host circuit breaker to API calls.
func (x *execution) dispatch(ctx context.Context, op *domain.Operation, desc *catalog.Descriptor, args map[string]any) (any, error) {
	e := x.engine
	host := apiHost(op, args)

	attempts := 0
	fn := func(ctx context.Context) (any, error) {
		attempts++
		if attempts > 1 {
			e.metrics.RecordRetry(op.Kind)
		}
		if host != "" {
			if berr := e.breaker.Allow(host); berr != nil {
				return nil, berr
			}
		}
		result, err := desc.Execute(ctx, x, args)
		if host != "" {
			if err != nil {
				e.breaker.RecordFailure(host, err)
			} else {
				e.breaker.RecordSuccess(host)
			}
		}
		return result, err
	}

	if desc.Retryable {
		return e.retry.ExecuteWithRetry(ctx, fn)
	}
	return fn(ctx)
}

// finishSuccess writes the operation output into the tree and records
// the success.
func (x *execution) finishSuccess(ctx context.Context, op *domain.Operation, resolvedArgs map[string]any, digest string) (any, error) {
	derived := deriveOutput(op.Kind, op.Result)

	if rawPath, ok := resolvedArgs["outputPath"].(string); ok && rawPath != "" {
		path, err := datamodel.ParsePath(rawPath)
		if err != nil {
			return nil, x.fail(ctx, op, err)
		}
		if err := x.tree.Write(path, derived); err != nil {
			return nil, x.fail(ctx, op, err)
		}
	}

	op.Status = domain.OpSuccess
	op.FinishedAt = time.Now()
	x.emit(ctx, domain.AuditEvent{
		Kind:          domain.EventOperationFinished,
		OperationID:   op.ID,
		OperationKind: op.Kind,
		Status:        string(domain.OpSuccess),
		DurationMs:    op.Duration().Milliseconds(),
		ArgsDigest:    digest,
	})
	x.engine.metrics.RecordOperation(op.Kind, string(domain.OpSuccess), op.Duration())
	x.engine.logger.Debug("operation succeeded",
		"executionId", x.wf.ExecutionID, "operationId", op.ID, "kind", op.Kind,
		"durationMs", op.Duration().Milliseconds(), "fromCache", op.FromCache)
	return derived, nil
}

func (x *execution) fail(ctx context.Context, op *domain.Operation, err error) error {
	derr := domain.AsError(err).WithOperation(op.ID)
	op.Status = domain.OpFailed
	op.Err = derr
	op.FinishedAt = time.Now()
	x.emit(ctx, domain.AuditEvent{
		Kind:          domain.EventOperationFinished,
		OperationID:   op.ID,
		OperationKind: op.Kind,
		Status:        string(domain.OpFailed),
		DurationMs:    op.Duration().Milliseconds(),
		Error:         derr,
	})
	x.engine.metrics.RecordOperation(op.Kind, string(domain.OpFailed), op.Duration())
	x.engine.logger.Warn("operation failed",
		"executionId", x.wf.ExecutionID, "operationId", op.ID, "kind", op.Kind,
		"errorType", derr.Type, "error", derr.Message)
	return derr
}

func (x *execution) markSkipped(ctx context.Context, op *domain.Operation) {
	op.Status = domain.OpSkipped
	if raw, ok := op.Args["outputPath"].(string); ok && raw != "" {
		if p, err := datamodel.ParsePath(raw); err == nil {
			x.skippedOutputs = append(x.skippedOutputs, p)
		}
	}
	x.emit(ctx, domain.AuditEvent{
		Kind:          domain.EventOperationFinished,
		OperationID:   op.ID,
		OperationKind: op.Kind,
		Status:        string(domain.OpSkipped),
	})
}

// readsSkippedOutput reports whether any reference path of op falls
// under the outputPath of an operation that was skipped, in which case
// the skip propagates.
func (x *execution) readsSkippedOutput(op *domain.Operation) bool {
	if len(x.skippedOutputs) == 0 {
		return false
	}
	for _, ref := range datamodel.CollectRefs(op.Args, catalog.RefSkipFunc(op.Kind)) {
		for _, out := range x.skippedOutputs {
			if ref.HasPrefix(out) || out.HasPrefix(ref) {
				return true
			}
		}
	}
	return false
}

// emit appends an audit event, filling the execution-scoped fields.
// Audit failures are logged, never fatal to the execution.
func (x *execution) emit(ctx context.Context, event domain.AuditEvent) {
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	event.ExecutionID = x.wf.ExecutionID
	event.AgentID = x.agentID
	if err := x.engine.audit.Append(ctx, event); err != nil {
		x.engine.logger.Error("audit append failed", "kind", event.Kind, "error", err)
	}
}

// Read implements catalog.Env.
func (x *execution) Read(p datamodel.Path) (any, error) { return x.tree.Read(p) }

// Write implements catalog.Env.
func (x *execution) Write(p datamodel.Path, v any) error { return x.tree.Write(p, v) }

// Exists implements catalog.Env.
func (x *execution) Exists(p datamodel.Path) bool { return x.tree.Exists(p) }

// Delete implements catalog.Env.
func (x *execution) Delete(p datamodel.Path) { x.tree.Delete(p) }

// RunOperation implements catalog.Env. Loop bodies run through the full
// pipeline; a body operation never nests into itself.
func (x *execution) RunOperation(ctx context.Context, opID string) (any, error) {
	op, ok := x.wf.Operations[opID]
	if !ok {
		return nil, domain.NewValidationError("undefined operation " + opID)
	}
	if x.active[opID] {
		return nil, domain.NewValidationError("operation " + opID + " is already running")
	}
	x.active[opID] = true
	defer delete(x.active, opID)

	op.Status = domain.OpPending
	op.Err = nil
	op.FromCache = false
	return x.runOperation(ctx, op)
}

// SkipOperations implements catalog.Env.
func (x *execution) SkipOperations(ids []string) {
	for _, id := range ids {
		x.skipped[id] = true
	}
}

// deriveOutput is the value written to outputPath: an ApiCall writes its
// decoded body, every other kind writes its result verbatim.
func deriveOutput(kind string, result any) any {
	if kind != catalog.KindAPICall {
		return result
	}
	if envelope, ok := result.(map[string]any); ok {
		return envelope["body"]
	}
	return result
}

// apiHost extracts the circuit breaker key for an ApiCall.
func apiHost(op *domain.Operation, args map[string]any) string {
	if op.Kind != catalog.KindAPICall {
		return ""
	}
	raw, _ := args["url"].(string)
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
