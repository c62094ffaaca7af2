package domain

import (
	"time"
)

type ServiceID string

const (
	ServiceMail     ServiceID = "mail"
	ServiceCalendar ServiceID = "calendar"
)

func (s ServiceID) Valid() bool {
	return s == ServiceMail || s == ServiceCalendar
}

// CredentialBundle is the decrypted token bundle for one (user, service) pair.
// It only ever exists in memory; at rest it is stored as the encrypted envelope
// inside a CredentialRecord.
type CredentialBundle struct {
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	Expiry        time.Time `json:"expiry"`
	Scopes        []string  `json:"scopes"`
	TokenEndpoint string    `json:"token_endpoint"`
	ClientID      string    `json:"client_id"`
	ClientSecret  string    `json:"client_secret"`
}

// Expired reports whether the access token is expired or will expire within
// the given leeway. A zero expiry means the provider did not report one and
// the token is treated as non-expiring.
func (b CredentialBundle) Expired(leeway time.Duration) bool {
	if b.Expiry.IsZero() {
		return false
	}
	return time.Now().Add(leeway).After(b.Expiry)
}

// HasScopes reports whether the bundle's granted scopes are a superset of the
// required ones.
func (b CredentialBundle) HasScopes(required []string) bool {
	granted := make(map[string]struct{}, len(b.Scopes))
	for _, s := range b.Scopes {
		granted[s] = struct{}{}
	}

	for _, s := range required {
		if _, ok := granted[s]; !ok {
			return false
		}
	}

	return true
}

// ClientMatches reports whether the bundle was issued to the given application
// credentials. A bundle issued to a different client cannot be refreshed with
// the current configuration.
func (b CredentialBundle) ClientMatches(clientID, clientSecret string) bool {
	return b.ClientID == clientID && b.ClientSecret == clientSecret
}

// CredentialRecord is the persisted form of a credential: the encrypted
// envelope keyed by (user, service). The plaintext bundle is never stored.
type CredentialRecord struct {
	UserID          string
	ServiceID       ServiceID
	EncryptedBundle string
	UpdatedAt       time.Time
}
