package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEncryptionSecret means the shared encryption secret was not
	// configured. This is fatal at startup; there is no fallback key.
	ErrMissingEncryptionSecret = errors.New("encryption secret is not configured")

	// ErrTokenFormat means a stored envelope is not a validly structured or
	// encoded ciphertext.
	ErrTokenFormat = errors.New("credential envelope is malformed")

	// ErrTokenIntegrity means an envelope failed authentication: tampering,
	// corruption, or a key derived from a different secret.
	ErrTokenIntegrity = errors.New("credential envelope failed integrity check")

	// ErrCredentialNotFound means the store holds no record for the
	// (user, service) pair.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrRefreshRejected means the identity provider refused the refresh
	// token (revoked or expired). Re-authorization is the only recovery.
	ErrRefreshRejected = errors.New("identity provider rejected the refresh token")

	// ErrAuthorizationDenied means the user declined the interactive
	// authorization flow or the flow itself failed.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// RefreshFailedError is a transient provider or network failure during token
// refresh. Callers may retry the whole request; this subsystem does not.
type RefreshFailedError struct {
	Err error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshFailedError) Unwrap() error {
	return e.Err
}

// StoreUnavailableError wraps a document database failure (connectivity,
// permission). It is surfaced unchanged and never converted into a
// re-authorization prompt.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("credential store %s failed: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}
