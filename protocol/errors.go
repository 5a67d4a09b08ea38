// Package protocol defines the error taxonomy shared by every two-party protocol stage: keygen,
// chain-code agreement, signing, rotation, and escrow/recovery.
package protocol

import "github.com/pkg/errors"

var (
	// ErrReject is returned whenever a proof, commitment opening, or peer message fails
	// verification. Fatal to the session, not to the process.
	ErrReject = errors.New("protocol reject")

	// ErrSessionExpired means the session's TTL elapsed before this stage was reached.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionMissing means a stage artifact required by this call was not found in storage,
	// either because the session never existed or a prior stage was skipped.
	ErrSessionMissing = errors.New("session missing")

	// ErrUnauthorized means the caller's auth token or user id did not validate.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorage wraps a storage backend I/O fault. Reads are retry-safe; the caller must assume a
	// write may or may not have landed.
	ErrStorage = errors.New("storage error")

	// ErrInvariant signals an internal bug, e.g. a computed point landed off-curve. Always fatal.
	ErrInvariant = errors.New("invariant violation")

	// ErrSessionConsumed means the session already completed its one-shot terminal stage (signing
	// sessions, rotation) and cannot be advanced again.
	ErrSessionConsumed = errors.New("session already consumed")
)

// Reject wraps err as a protocol rejection, preserving context for logs while keeping
// errors.Cause(result) == ErrReject so callers can match on the sentinel.
func Reject(err error, context string) error {
	if err == nil {
		return errors.Wrap(ErrReject, context)
	}
	return errors.Wrapf(ErrReject, "%s: %s", context, err)
}
