package apperrors

import "errors"

// Standardized exchange errors
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOrderRejected         = errors.New("order rejected")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrNetwork               = errors.New("network error")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidOrderParameter = errors.New("invalid order parameter")
	ErrSystemOverload        = errors.New("system overload")
)

// Envelope extraction errors. The decision service wraps its command list in a
// JSON object embedded in free text; each failure mode gets its own sentinel so
// the cycle can report exactly what went wrong.
var (
	ErrNoEnvelopeFound     = errors.New("no envelope found")
	ErrMalformedEnvelope   = errors.New("malformed envelope")
	ErrMissingCommandField = errors.New("envelope missing command field")
)

// Risk skips. Intentional no-ops, not faults: the calculator refuses to derive
// an order from degenerate inputs.
var (
	ErrBalanceTooLow     = errors.New("balance too low")
	ErrLimitsUnavailable = errors.New("order size limits unavailable")
)
