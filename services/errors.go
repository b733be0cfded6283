package services

import "errors"

// Error taxonomy for the realtime core. Connection-scoped errors are caught
// at the event-handler boundary and emitted back as an `error` event; only
// authentication errors terminate a connection attempt.
var (
	ErrUnauthenticated   = errors.New("no credential provided")
	ErrInvalidCredential = errors.New("invalid or expired credential")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrNotAMember        = errors.New("not a member of this group")
	ErrStoreUnavailable  = errors.New("coordination store unavailable")
	ErrNotFound          = errors.New("not found")
	ErrShutdownTimeout   = errors.New("shutdown timed out")
)
