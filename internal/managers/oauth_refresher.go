package managers

import (
	"context"
	"errors"
	"net/http"

	"github.com/taskline/taskline/internal/domain"

	"golang.org/x/oauth2"
)

// oauthTokenRefresher exchanges refresh tokens at the provider's token
// endpoint using the client credentials embedded in the bundle.
type oauthTokenRefresher struct{}

func NewOAuthTokenRefresher() domain.TokenRefresher {
	return &oauthTokenRefresher{}
}

func (r *oauthTokenRefresher) Refresh(ctx context.Context, bundle domain.CredentialBundle) (domain.CredentialBundle, error) {
	config := &oauth2.Config{
		ClientID:     bundle.ClientID,
		ClientSecret: bundle.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: bundle.TokenEndpoint,
		},
		Scopes: bundle.Scopes,
	}

	source := config.TokenSource(ctx, &oauth2.Token{RefreshToken: bundle.RefreshToken})

	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && isRejection(retrieveErr) {
			return domain.CredentialBundle{}, domain.ErrRefreshRejected
		}

		return domain.CredentialBundle{}, &domain.RefreshFailedError{Err: err}
	}

	refreshed := bundle
	refreshed.AccessToken = token.AccessToken
	refreshed.Expiry = token.Expiry

	// The provider rotates refresh tokens only sometimes; keep the old one
	// unless a replacement was issued.
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}

	return refreshed, nil
}

// isRejection distinguishes "this refresh token is dead" from transient
// provider trouble. 4xx responses mean the token (or client) was refused.
func isRejection(err *oauth2.RetrieveError) bool {
	if err.Response == nil {
		return false
	}

	return err.Response.StatusCode >= http.StatusBadRequest && err.Response.StatusCode < http.StatusInternalServerError
}
