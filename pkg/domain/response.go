package domain

// DataFormat selects how much of the data model a response carries.
type DataFormat string

const (
	// FormatSummary elides long strings and truncates long arrays.
	FormatSummary DataFormat = "summary"
	// FormatFull returns the data model bit-exact.
	FormatFull DataFormat = "full"
)

// OperationSummary is the per-operation slice of an execution response.
type OperationSummary struct {
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	Result     any    `json:"result,omitempty"`
	Error      *Error `json:"error,omitempty"`
	FromCache  bool   `json:"fromCache,omitempty"`
}

// ExecutionResponse is the structured result of Executor.Run.
type ExecutionResponse struct {
	ExecutionID string                      `json:"executionId"`
	Status      ExecStatus                  `json:"status"`
	Operations  map[string]OperationSummary `json:"operations"`
	Data        map[string]any              `json:"data"`
	DurationMs  int64                       `json:"durationMs"`
}
