package domain

import "errors"

// Error taxonomy of the alert engine. Every error is isolated to the symbol or
// registration it occurred on; none is fatal to the sweep.
var (
	// ErrOracleUnavailable covers network failures, 5xx responses and
	// timeouts from the market oracle. The symbol is skipped for the cycle
	// with no state mutation and no notification.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrMalformedSnapshot covers empty or non-JSON oracle output and
	// snapshots missing required numeric fields. Skip, log, no mutation.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrPersistence marks a failed state write. The notification may already
	// have been delivered; delivery is at-most-once with best-effort
	// durability, so the failure is logged and not retried.
	ErrPersistence = errors.New("persistence failure")

	// ErrDeliveryFailed marks a failed delivery attempt on one transport or
	// push registration. It never aborts delivery to other registrations.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrNotConnected is reported by the live registry when the user has no
	// active channel, or the channel dropped between check and emit.
	ErrNotConnected = errors.New("no live channel connected")

	// ErrNotFound is returned by repositories for missing rows.
	ErrNotFound = errors.New("not found")
)
