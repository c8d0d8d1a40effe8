package engine

import (
	"fmt"

	"github.com/flowgate/flowgate/pkg/domain"
)

func (x *execution) buildResponse(format domain.DataFormat) *domain.ExecutionResponse {
	resp := &domain.ExecutionResponse{
		ExecutionID: x.wf.ExecutionID,
		Status:      x.record.Status,
		Operations:  make(map[string]domain.OperationSummary, len(x.wf.Operations)),
		DurationMs:  x.record.TotalDuration().Milliseconds(),
	}

	for id, op := range x.wf.Operations {
		summary := domain.OperationSummary{
			Status:     string(op.Status),
			DurationMs: op.Duration().Milliseconds(),
			Error:      op.Err,
			FromCache:  op.FromCache,
		}
		if op.Status == domain.OpSuccess {
			summary.Result = x.shape(op.Result, format)
		}
		resp.Operations[id] = summary
	}

	data := make(map[string]any)
	for path, value := range x.tree.TopLevel() {
		data[path] = x.shape(value, format)
	}
	resp.Data = data
	return resp
}

// shape applies the response shaping rules: in summary format long
// strings are elided and long arrays truncated, recursively. Full
// format returns values bit-exact.
func (x *execution) shape(v any, format domain.DataFormat) any {
	if format == domain.FormatFull {
		return v
	}
	return shapeValue(v, x.engine.cfg.Response)
}

func shapeValue(v any, shaping domain.ResponseShaping) any {
	switch val := v.(type) {
	case string:
		if shaping.MaxStringBytes > 0 && len(val) > shaping.MaxStringBytes {
			return fmt.Sprintf("%s... (%d bytes truncated)",
				val[:shaping.MaxStringBytes], len(val)-shaping.MaxStringBytes)
		}
		return val
	case []any:
		items := val
		truncated := 0
		if shaping.MaxArrayItems > 0 && len(items) > shaping.MaxArrayItems {
			truncated = len(items) - shaping.MaxArrayItems
			items = items[:shaping.MaxArrayItems]
		}
		out := make([]any, len(items), len(items)+1)
		for i, item := range items {
			out[i] = shapeValue(item, shaping)
		}
		if truncated > 0 {
			out = append(out, fmt.Sprintf("... (%d items truncated)", truncated))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = shapeValue(item, shaping)
		}
		return out
	default:
		return v
	}
}
