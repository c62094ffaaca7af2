package managers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/taskline/taskline/internal/domain"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

var (
	mailScopes     = []string{gmail.GmailSendScope}
	calendarScopes = []string{calendar.CalendarScope}
)

type ServiceClientFactoryDependencies struct {
	CredentialManager domain.CredentialManager
}

// serviceClientFactory turns usable credential bundles into concrete Google
// API clients. It never sees encrypted envelopes; the lifecycle manager hands
// it live bundles only.
type serviceClientFactory struct {
	credentialManager domain.CredentialManager
}

func NewServiceClientFactory(deps ServiceClientFactoryDependencies) domain.ServiceClientFactory {
	return &serviceClientFactory{
		credentialManager: deps.CredentialManager,
	}
}

func (f *serviceClientFactory) GetMailService(ctx context.Context, userID string) (*gmail.Service, error) {
	bundle, err := f.credentialManager.GetUsableCredential(ctx, userID, domain.ServiceMail, mailScopes)
	if err != nil {
		return nil, err
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(f.httpClient(ctx, bundle)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return service, nil
}

func (f *serviceClientFactory) GetCalendarService(ctx context.Context, userID string) (*calendar.Service, error) {
	bundle, err := f.credentialManager.GetUsableCredential(ctx, userID, domain.ServiceCalendar, calendarScopes)
	if err != nil {
		return nil, err
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(f.httpClient(ctx, bundle)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return service, nil
}

func (f *serviceClientFactory) httpClient(ctx context.Context, bundle domain.CredentialBundle) *http.Client {
	token := &oauth2.Token{
		AccessToken: bundle.AccessToken,
		TokenType:   "Bearer",
	}

	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}
