package domain

import (
	"context"

	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
)

// ServiceClientFactory builds live API clients from usable credentials. It is
// the only consumer of CredentialManager in the request path.
type ServiceClientFactory interface {
	GetMailService(ctx context.Context, userID string) (*gmail.Service, error)
	GetCalendarService(ctx context.Context, userID string) (*calendar.Service, error)
}
