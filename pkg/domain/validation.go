package domain

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue categories, reported in validator order.
const (
	IssueStructure  = "structure"
	IssuePermission = "permission"
	IssueDependency = "dependency"
	IssueType       = "type"
)

// Issue is a single validator finding.
type Issue struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	OperationID string `json:"operationId,omitempty"`
	Message     string `json:"message"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// ValidationReport is the validator's answer for one workflow.
type ValidationReport struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Add files an issue under the right severity bucket and maintains Valid.
func (r *ValidationReport) Add(issue Issue) {
	switch issue.Severity {
	case SeverityWarning:
		r.Warnings = append(r.Warnings, issue)
	default:
		issue.Severity = SeverityError
		r.Errors = append(r.Errors, issue)
		r.Valid = false
	}
}

// HasErrors reports whether any error-severity issues were recorded.
func (r *ValidationReport) HasErrors() bool {
	return len(r.Errors) > 0
}
