package domain

import "context"

// TokenRefresher exchanges a still-valid refresh token for a new access token
// at the identity provider's token endpoint.
type TokenRefresher interface {
	// Refresh returns a copy of the bundle with a fresh access token and
	// expiry. The refresh token is replaced only if the provider issued a new
	// one. It returns ErrRefreshRejected when the provider refuses the token
	// and *RefreshFailedError on transport failure.
	Refresh(ctx context.Context, bundle CredentialBundle) (CredentialBundle, error)
}

// InteractiveAuthorizer drives the browser-based consent flow that produces a
// fresh credential bundle for the pair. It may block indefinitely pending
// user action; bounding the wait is the caller's concern.
type InteractiveAuthorizer interface {
	// Authorize returns a full bundle on consent, or ErrAuthorizationDenied
	// if the user declined or the flow failed.
	Authorize(ctx context.Context, userID string, serviceID ServiceID, scopes []string) (CredentialBundle, error)
}
