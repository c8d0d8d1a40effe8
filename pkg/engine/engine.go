// Package engine parses, validates and executes declarative workflows.
// It owns the execution state machine and wires together the operation
// catalog, the data model, credential injection and the governance
// machinery (rate limits, retries, circuit breaking, caching, audit).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowgate/flowgate/internal/authz"
	"github.com/flowgate/flowgate/internal/governance"
	"github.com/flowgate/flowgate/pkg/cache"
	"github.com/flowgate/flowgate/pkg/catalog"
	"github.com/flowgate/flowgate/pkg/domain"
	"github.com/flowgate/flowgate/pkg/storage"
	"github.com/flowgate/flowgate/pkg/telemetry"
	"github.com/flowgate/flowgate/pkg/validator"
)

// Options carries the collaborators an Engine is assembled from. Zero
// fields get working in-memory defaults.
type Options struct {
	Config          domain.Config
	CatalogProvider domain.CatalogProvider
	Credentials     domain.CredentialResolver
	Audit           domain.AuditLog
	Metrics         *telemetry.Metrics
	Logger          *slog.Logger
	HTTPClient      *http.Client
	Storage         storage.Store
}

// Engine executes workflows for agents.
type Engine struct {
	cfg       domain.Config
	catalog   *catalog.Catalog
	validator *validator.Validator
	provider  domain.CatalogProvider
	creds     domain.CredentialResolver
	limiter   *governance.RateLimiter
	retry     *governance.RetryPolicy
	breaker   *governance.CircuitBreaker
	cache     *cache.ResultCache
	audit     domain.AuditLog
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New assembles an engine. The context is used to compile the embedded
// authorization policy.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.CatalogProvider == nil {
		return nil, fmt.Errorf("engine requires a CatalogProvider")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewMetrics()
	}

	cat := catalog.NewBuiltin(catalog.Options{
		HTTPClient: opts.HTTPClient,
		Storage:    opts.Storage,
		Logger:     opts.Logger,
	})

	checker, err := authz.NewChecker(ctx)
	if err != nil {
		return nil, err
	}

	var auditLog domain.AuditLog = opts.Audit
	if auditLog == nil {
		auditLog = noopAudit{}
	}

	return &Engine{
		cfg:       opts.Config,
		catalog:   cat,
		validator: validator.New(cat, checker),
		provider:  opts.CatalogProvider,
		creds:     opts.Credentials,
		limiter:   governance.NewRateLimiter(opts.Config.RateLimits),
		retry:     governance.NewRetryPolicy(opts.Config.Retry),
		breaker:   governance.NewCircuitBreaker(governance.DefaultCircuitBreakerConfig()),
		cache:     cache.New(opts.Config.Cache),
		audit:     auditLog,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		tracer:    otel.Tracer("flowgate/engine"),
	}, nil
}

type noopAudit struct{}

func (noopAudit) Append(context.Context, domain.AuditEvent) error { return nil }

// Parse decodes workflow bytes and enforces the operation-count cap.
func (e *Engine) Parse(workflowBytes []byte) (*domain.Workflow, *domain.Error) {
	wf, derr := ParseWorkflow(workflowBytes)
	if derr != nil {
		return nil, derr
	}
	if limit := e.cfg.Limits.MaxOperationsPerWorkflow; limit > 0 && len(wf.Operations) > limit {
		return nil, domain.NewResourceError(
			fmt.Sprintf("workflow defines %d operations, limit is %d", len(wf.Operations), limit))
	}
	return wf, nil
}

// Validate parses and statically checks a workflow without executing it.
func (e *Engine) Validate(ctx context.Context, agentID string, workflowBytes []byte) (*domain.ValidationReport, error) {
	wf, derr := e.Parse(workflowBytes)
	if derr != nil {
		return reportFromError(derr), nil
	}
	allowed, err := e.provider.GetAllowedCatalog(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return e.validator.Validate(ctx, allowed, wf)
}

// Run parses, validates and executes a workflow. A failed validation
// yields a nil response and the report; an executed workflow yields the
// response and a valid report.
func (e *Engine) Run(ctx context.Context, agentID string, workflowBytes []byte, format domain.DataFormat) (*domain.ExecutionResponse, *domain.ValidationReport, error) {
	wf, derr := e.Parse(workflowBytes)
	if derr != nil {
		return nil, reportFromError(derr), nil
	}

	allowed, err := e.provider.GetAllowedCatalog(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	report, err := e.validator.Validate(ctx, allowed, wf)
	if err != nil {
		return nil, nil, err
	}
	if !report.Valid {
		return nil, report, nil
	}

	if ms := e.cfg.Limits.MaxWorkflowDurationMs; ms > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("execution.id", wf.ExecutionID),
		attribute.String("agent.id", agentID),
	))
	defer span.End()

	ex := newExecution(e, agentID, wf)
	resp := ex.run(ctx, format)
	span.SetAttributes(attribute.String("execution.status", string(resp.Status)))
	return resp, report, nil
}

// reportFromError folds a parse-stage error into a validation report so
// agents see one uniform failure shape.
func reportFromError(derr *domain.Error) *domain.ValidationReport {
	suggestion := ""
	if len(derr.Suggestions) > 0 {
		suggestion = derr.Suggestions[0]
	}
	report := &domain.ValidationReport{}
	report.Add(domain.Issue{
		Severity:    domain.SeverityError,
		Category:    domain.IssueStructure,
		OperationID: derr.OperationID,
		Message:     derr.Message,
		Suggestion:  suggestion,
	})
	report.Valid = false
	return report
}

// CacheStats exposes the result cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// RateLimitStats exposes an agent's current window usage.
func (e *Engine) RateLimitStats(agentID string) governance.RateLimitStats {
	return e.limiter.Stats(agentID)
}

// InvalidateCache drops cached results for one kind, or all when kind is
// empty.
func (e *Engine) InvalidateCache(kind string) int {
	return e.cache.Invalidate(kind)
}
