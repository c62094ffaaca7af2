package managers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"

	"github.com/taskline/taskline/internal/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type LoopbackAuthorizerConfig struct {
	ClientID      string
	ClientSecret  string
	AuthEndpoint  string
	TokenEndpoint string

	// ListenAddress receives the provider redirect, e.g. "localhost:8002".
	ListenAddress string

	// PresentURL surfaces the consent URL to the user (opens a browser,
	// pushes it over the chat stream, ...). When nil the URL is only logged.
	PresentURL func(userID string, serviceID domain.ServiceID, url string) error
}

// loopbackAuthorizer runs the authorization-code flow against a loopback
// redirect: start a one-shot local listener, send the user to the consent
// URL, wait for the redirect, exchange the code. It blocks until the user
// acts or ctx is done.
type loopbackAuthorizer struct {
	config LoopbackAuthorizerConfig
}

func NewLoopbackAuthorizer(config LoopbackAuthorizerConfig) domain.InteractiveAuthorizer {
	return &loopbackAuthorizer{config: config}
}

type callbackResult struct {
	code string
	err  error
}

func (a *loopbackAuthorizer) Authorize(ctx context.Context, userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
	listener, err := net.Listen("tcp", a.config.ListenAddress)
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("failed to start authorization callback listener: %w", err)
	}
	defer listener.Close()

	config := &oauth2.Config{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.config.AuthEndpoint,
			TokenURL: a.config.TokenEndpoint,
		},
		RedirectURL: fmt.Sprintf("http://%s/callback", listener.Addr().String()),
		Scopes:      scopes,
	}

	state, err := randomState()
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	results := make(chan callbackResult, 1)

	server := &http.Server{Handler: callbackHandler(state, results)}
	go server.Serve(listener)
	defer server.Close()

	consentURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	if a.config.PresentURL != nil {
		if err := a.config.PresentURL(userID, serviceID, consentURL); err != nil {
			return domain.CredentialBundle{}, fmt.Errorf("%w: %v", domain.ErrAuthorizationDenied, err)
		}
	} else {
		log.Info().
			Str("user_id", userID).
			Str("service_id", string(serviceID)).
			Str("url", consentURL).
			Msg("Waiting for user consent")
	}

	var result callbackResult

	select {
	case result = <-results:
	case <-ctx.Done():
		return domain.CredentialBundle{}, fmt.Errorf("%w: %v", domain.ErrAuthorizationDenied, ctx.Err())
	}

	if result.err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("%w: %v", domain.ErrAuthorizationDenied, result.err)
	}

	token, err := config.Exchange(ctx, result.code)
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("%w: %v", domain.ErrAuthorizationDenied, err)
	}

	return domain.CredentialBundle{
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		Expiry:        token.Expiry,
		Scopes:        scopes,
		TokenEndpoint: a.config.TokenEndpoint,
		ClientID:      a.config.ClientID,
		ClientSecret:  a.config.ClientSecret,
	}, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		switch {
		case query.Get("error") != "":
			results <- callbackResult{err: fmt.Errorf("provider returned %q", query.Get("error"))}
			http.Error(w, "Authorization was not granted. You can close this window.", http.StatusForbidden)
		case query.Get("state") != state:
			results <- callbackResult{err: fmt.Errorf("state mismatch")}
			http.Error(w, "Invalid authorization response.", http.StatusBadRequest)
		default:
			results <- callbackResult{code: query.Get("code")}
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
		}
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
