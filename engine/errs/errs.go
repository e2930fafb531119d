// Package errs defines the engine's error taxonomy (spec.md §7). Callers use
// errors.Is against the sentinel Kind values; an error that carries a
// classification wraps one of them with %w so context survives without
// losing it. Errors from config, inventory and storage loading wrap the
// underlying error only.
package errs

import "errors"

// Kind classifies an engine error for propagation-policy decisions.
type Kind error

var (
	ProbeTimeout              Kind = errors.New("probe timeout")
	ProbeProtocolError        Kind = errors.New("probe protocol error")
	InventoryUnavailable      Kind = errors.New("inventory unavailable")
	PersistenceWriteFailure   Kind = errors.New("persistence write failure")
	NotificationDispatchError Kind = errors.New("notification dispatch failure")
	ConfigParseError          Kind = errors.New("config parse error")
	InvariantViolation        Kind = errors.New("invariant violation")
)
