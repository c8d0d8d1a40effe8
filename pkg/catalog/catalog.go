// Package catalog defines the fixed set of built-in operation kinds the
// engine can execute. Each kind is a tagged variant: a descriptor bundling
// its argument schema check, static output type, cacheability rule,
// retryability classification and executor function. There is no open
// class hierarchy and agents cannot register kinds.
package catalog

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/flowgate/flowgate/pkg/datamodel"
	"github.com/flowgate/flowgate/pkg/domain"
	"github.com/flowgate/flowgate/pkg/storage"
)

// Built-in operation kind names.
const (
	KindAPICall       = "ApiCall"
	KindFilterData    = "FilterData"
	KindTransformData = "TransformData"
	KindConditional   = "Conditional"
	KindLoop          = "Loop"
	KindStoreData     = "StoreData"
	KindWait          = "Wait"
	KindMergeData     = "MergeData"
)

// OutputType is the static type a kind declares for its outputPath value.
type OutputType string

const (
	OutputAny    OutputType = "any"
	OutputArray  OutputType = "array"
	OutputObject OutputType = "object"
	OutputScalar OutputType = "scalar"
	OutputNone   OutputType = "none"
)

// Env is the narrow view of the executor an operation sees: the
// execution-local tree, sub-operation dispatch for Loop bodies, and
// branch gating for Conditionals.
type Env interface {
	Read(p datamodel.Path) (any, error)
	Write(p datamodel.Path, v any) error
	Exists(p datamodel.Path) bool
	Delete(p datamodel.Path)

	// RunOperation executes a defined operation by id through the full
	// executor pipeline and returns its output value.
	RunOperation(ctx context.Context, opID string) (any, error)

	// SkipOperations marks the given operation ids skipped before they
	// are reached in the declared order.
	SkipOperations(ids []string)
}

// ExecuteFunc runs one operation. args is the concrete view: data
// references and credentials are already substituted. The returned value
// becomes the operation record's result.
type ExecuteFunc func(ctx context.Context, env Env, args map[string]any) (any, error)

// Descriptor describes one operation kind.
type Descriptor struct {
	Kind string
	// Output is the kind's static output type; OutputFor refines it per
	// argument set when non-nil (TransformData varies by transform).
	Output    OutputType
	OutputFor func(args map[string]any) OutputType
	// Retryable marks kinds whose failures the retry policy may absorb.
	Retryable bool
	// Cacheable decides cache eligibility from the raw (pre-resolution)
	// argument set.
	Cacheable func(args map[string]any) bool
	// ArrayInputKeys names argument keys that must reference array-typed
	// upstream outputs; consumed by the validator's type stage.
	ArrayInputKeys []string
	// Validate performs the structural schema check for the kind.
	Validate func(args map[string]any) []domain.Issue
	Execute  ExecuteFunc
}

// OutputType returns the effective output type for an argument set.
func (d *Descriptor) OutputType(args map[string]any) OutputType {
	if d.OutputFor != nil {
		return d.OutputFor(args)
	}
	return d.Output
}

// Catalog is the registry of built-in kinds.
type Catalog struct {
	descriptors map[string]*Descriptor
}

// Options carries the shared collaborators operation executors close over.
type Options struct {
	HTTPClient *http.Client
	Storage    storage.Store
	Logger     *slog.Logger
}

// NewBuiltin assembles the catalog of all eight built-in kinds.
func NewBuiltin(opts Options) *Catalog {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Transport: http.DefaultTransport}
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Catalog{descriptors: make(map[string]*Descriptor)}
	c.register(newAPICallDescriptor(opts))
	c.register(newFilterDataDescriptor())
	c.register(newTransformDataDescriptor())
	c.register(newConditionalDescriptor())
	c.register(newLoopDescriptor())
	c.register(newStoreDataDescriptor(opts))
	c.register(newWaitDescriptor())
	c.register(newMergeDataDescriptor())
	return c
}

func (c *Catalog) register(d *Descriptor) {
	c.descriptors[d.Kind] = d
}

// Get returns the descriptor for a kind.
func (c *Catalog) Get(kind string) (*Descriptor, bool) {
	d, ok := c.descriptors[kind]
	return d, ok
}

// Kinds lists the registered kind names.
func (c *Catalog) Kinds() []string {
	out := make([]string, 0, len(c.descriptors))
	for k := range c.descriptors {
		out = append(out, k)
	}
	return out
}

func cacheableAlways(map[string]any) bool { return true }
func cacheableNever(map[string]any) bool  { return false }

// RefSkipFunc returns the reference exemption rule for a kind. Write
// targets stay literal for every kind; a Conditional's condition path
// is also exempt since it may legitimately be absent for exists/empty
// checks. The executor and the validator share this rule.
func RefSkipFunc(kind string) datamodel.SkipFunc {
	if kind == KindConditional {
		return func(key string) bool { return key == "outputPath" || key == "path" }
	}
	return datamodel.SkipOutputPath
}
