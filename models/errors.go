package models

import "errors"

// Error taxonomy. NotFound/Validation/Conflict surface to the caller as
// rejected operations. TransientStore is retried by the caller with backoff,
// never internally. InvariantViolation is reported for the out-of-band
// reconciliation job, never auto-corrected inline.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrTransientStore     = errors.New("transient store error")
	ErrInvariantViolation = errors.New("invariant violation")
)

// IsRetryable reports whether the caller should retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
