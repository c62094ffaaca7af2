package domain

import "context"

// CredentialManager produces a usable, in-memory credential bundle for a
// (user, service) pair, running whatever combination of decryption, refresh,
// and interactive authorization is needed to get there.
type CredentialManager interface {
	GetUsableCredential(ctx context.Context, userID string, serviceID ServiceID, scopes []string) (CredentialBundle, error)
}
