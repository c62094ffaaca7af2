package managers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taskline/taskline/internal/domain"

	"github.com/rs/zerolog/log"
)

// expiryLeeway treats tokens this close to expiry as already expired, so a
// token does not die between the check and the API call that uses it.
const expiryLeeway = 30 * time.Second

type TokenLifecycleManagerDependencies struct {
	Store      domain.CredentialStore
	Cipher     domain.TokenCipher
	Refresher  domain.TokenRefresher
	Authorizer domain.InteractiveAuthorizer

	// ClientID and ClientSecret are the currently registered application
	// credentials. A stored bundle issued to a different client cannot be
	// refreshed and goes straight back through interactive authorization.
	ClientID     string
	ClientSecret string
}

// tokenLifecycleManager is the single path from "I need a credential for
// (user, service, scopes)" to a live bundle: fetch, decrypt, validate,
// refresh or re-authorize, re-encrypt, persist.
type tokenLifecycleManager struct {
	store      domain.CredentialStore
	cipher     domain.TokenCipher
	refresher  domain.TokenRefresher
	authorizer domain.InteractiveAuthorizer

	clientID     string
	clientSecret string

	// locksMu guards locks; each entry serializes the full state machine run
	// for one (user, service) pair so concurrent requests cannot
	// double-refresh the same record or interleave store writes.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewTokenLifecycleManager(deps TokenLifecycleManagerDependencies) domain.CredentialManager {
	return &tokenLifecycleManager{
		store:        deps.Store,
		cipher:       deps.Cipher,
		refresher:    deps.Refresher,
		authorizer:   deps.Authorizer,
		clientID:     deps.ClientID,
		clientSecret: deps.ClientSecret,
		locks:        map[string]*sync.Mutex{},
	}
}

func (m *tokenLifecycleManager) GetUsableCredential(ctx context.Context, userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
	unlock := m.lockKey(userID, serviceID)
	defer unlock()

	record, err := m.store.Get(ctx, userID, serviceID)
	if errors.Is(err, domain.ErrCredentialNotFound) {
		return m.authorize(ctx, userID, serviceID, scopes, false)
	}
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	bundle, err := m.decryptBundle(record)
	if err != nil {
		// Unreadable without the original key, so re-authorization is the
		// only recovery. Logged by kind only, never by content.
		log.Warn().
			Str("user_id", userID).
			Str("service_id", string(serviceID)).
			Err(err).
			Msg("Stored credential is unreadable, forcing re-authorization")

		return m.authorize(ctx, userID, serviceID, scopes, true)
	}

	if !bundle.HasScopes(scopes) {
		log.Info().
			Str("user_id", userID).
			Str("service_id", string(serviceID)).
			Msg("Stored credential is missing required scopes, forcing re-authorization")

		return m.authorize(ctx, userID, serviceID, scopes, true)
	}

	if !bundle.Expired(expiryLeeway) {
		return bundle, nil
	}

	if bundle.RefreshToken == "" {
		return m.authorize(ctx, userID, serviceID, scopes, true)
	}

	if !bundle.ClientMatches(m.clientID, m.clientSecret) {
		// The application was re-registered since this bundle was issued;
		// the provider would reject the refresh, so skip the round trip.
		log.Info().
			Str("user_id", userID).
			Str("service_id", string(serviceID)).
			Msg("Stored credential belongs to a different client, forcing re-authorization")

		return m.authorize(ctx, userID, serviceID, scopes, true)
	}

	refreshed, err := m.refresher.Refresh(ctx, bundle)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshRejected) {
			log.Info().
				Str("user_id", userID).
				Str("service_id", string(serviceID)).
				Msg("Refresh token rejected by identity provider, forcing re-authorization")

			return m.authorize(ctx, userID, serviceID, scopes, true)
		}

		// Transient failure; retrying is the caller's call.
		return domain.CredentialBundle{}, err
	}

	if err := m.persist(ctx, userID, serviceID, refreshed, true); err != nil {
		return domain.CredentialBundle{}, err
	}

	return refreshed, nil
}

func (m *tokenLifecycleManager) decryptBundle(record domain.CredentialRecord) (domain.CredentialBundle, error) {
	plaintext, err := m.cipher.Decrypt(record.EncryptedBundle)
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	var bundle domain.CredentialBundle
	if err := json.Unmarshal([]byte(plaintext), &bundle); err != nil {
		return domain.CredentialBundle{}, domain.ErrTokenFormat
	}

	return bundle, nil
}

// authorize runs the interactive flow and persists the resulting bundle.
// recordExists decides between creating and overwriting the stored record,
// based on what the earlier Get found.
func (m *tokenLifecycleManager) authorize(ctx context.Context, userID string, serviceID domain.ServiceID, scopes []string, recordExists bool) (domain.CredentialBundle, error) {
	bundle, err := m.authorizer.Authorize(ctx, userID, serviceID, scopes)
	if err != nil {
		return domain.CredentialBundle{}, err
	}

	if err := m.persist(ctx, userID, serviceID, bundle, recordExists); err != nil {
		return domain.CredentialBundle{}, err
	}

	return bundle, nil
}

func (m *tokenLifecycleManager) persist(ctx context.Context, userID string, serviceID domain.ServiceID, bundle domain.CredentialBundle, update bool) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to serialize credential bundle: %w", err)
	}

	envelope, err := m.cipher.Encrypt(string(raw))
	if err != nil {
		return fmt.Errorf("failed to encrypt credential bundle: %w", err)
	}

	if update {
		return m.store.Update(ctx, userID, serviceID, envelope)
	}

	return m.store.Set(ctx, userID, serviceID, envelope)
}

func (m *tokenLifecycleManager) lockKey(userID string, serviceID domain.ServiceID) func() {
	key := userID + "/" + string(serviceID)

	m.locksMu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.locksMu.Unlock()

	lock.Lock()

	return lock.Unlock
}
