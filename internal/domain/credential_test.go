package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredentialBundle_Expired(t *testing.T) {
	tests := []struct {
		name    string
		expiry  time.Time
		leeway  time.Duration
		expired bool
	}{
		{name: "future expiry", expiry: time.Now().Add(time.Hour), expired: false},
		{name: "past expiry", expiry: time.Now().Add(-time.Hour), expired: true},
		{name: "inside leeway", expiry: time.Now().Add(10 * time.Second), leeway: 30 * time.Second, expired: true},
		{name: "zero expiry never expires", expired: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := CredentialBundle{Expiry: tt.expiry}

			assert.Equal(t, tt.expired, bundle.Expired(tt.leeway))
		})
	}
}

func TestCredentialBundle_HasScopes(t *testing.T) {
	bundle := CredentialBundle{
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.send",
			"https://www.googleapis.com/auth/calendar",
		},
	}

	assert.True(t, bundle.HasScopes(nil))
	assert.True(t, bundle.HasScopes([]string{"https://www.googleapis.com/auth/gmail.send"}))
	assert.True(t, bundle.HasScopes(bundle.Scopes))
	assert.False(t, bundle.HasScopes([]string{"https://www.googleapis.com/auth/drive"}))
}

func TestCredentialBundle_ClientMatches(t *testing.T) {
	bundle := CredentialBundle{ClientID: "c1", ClientSecret: "s1"}

	assert.True(t, bundle.ClientMatches("c1", "s1"))
	assert.False(t, bundle.ClientMatches("c2", "s1"))
	assert.False(t, bundle.ClientMatches("c1", "s2"))
}

func TestServiceID_Valid(t *testing.T) {
	assert.True(t, ServiceMail.Valid())
	assert.True(t, ServiceCalendar.Valid())
	assert.False(t, ServiceID("drive").Valid())
}
