package domain

import "context"

// CredentialStore persists encrypted credential records keyed by
// (user, service). It maps that key space onto the backing document store and
// surfaces its errors unchanged; whether to create or overwrite is the
// caller's decision.
type CredentialStore interface {
	// Get returns the record for the pair, or ErrCredentialNotFound.
	Get(ctx context.Context, userID string, serviceID ServiceID) (CredentialRecord, error)
	// Set creates the record for the pair.
	Set(ctx context.Context, userID string, serviceID ServiceID, encryptedBundle string) error
	// Update overwrites an existing record for the pair.
	Update(ctx context.Context, userID string, serviceID ServiceID, encryptedBundle string) error
}
