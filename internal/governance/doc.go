// Package governance coordinates runtime safety controls for workflow
// execution: per-agent rate limiting, retry with exponential backoff,
// and circuit breaking for outbound API hosts. The executor depends on
// these primitives to protect upstream services and keep misbehaving
// agents inside their budgets.
package governance
