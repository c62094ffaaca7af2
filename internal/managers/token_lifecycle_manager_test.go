package managers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/taskline/taskline/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentialStore struct {
	mu      sync.Mutex
	records map[string]string

	getCalls    int
	setCalls    int
	updateCalls int

	getErr error
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{records: map[string]string{}}
}

func storeKey(userID string, serviceID domain.ServiceID) string {
	return userID + "/" + string(serviceID)
}

func (s *fakeCredentialStore) Get(ctx context.Context, userID string, serviceID domain.ServiceID) (domain.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls++

	if s.getErr != nil {
		return domain.CredentialRecord{}, s.getErr
	}

	envelope, ok := s.records[storeKey(userID, serviceID)]
	if !ok {
		return domain.CredentialRecord{}, domain.ErrCredentialNotFound
	}

	return domain.CredentialRecord{UserID: userID, ServiceID: serviceID, EncryptedBundle: envelope}, nil
}

func (s *fakeCredentialStore) Set(ctx context.Context, userID string, serviceID domain.ServiceID, encryptedBundle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setCalls++
	s.records[storeKey(userID, serviceID)] = encryptedBundle

	return nil
}

func (s *fakeCredentialStore) Update(ctx context.Context, userID string, serviceID domain.ServiceID, encryptedBundle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateCalls++

	if _, ok := s.records[storeKey(userID, serviceID)]; !ok {
		return domain.ErrCredentialNotFound
	}

	s.records[storeKey(userID, serviceID)] = encryptedBundle

	return nil
}

type fakeRefresher struct {
	mu      sync.Mutex
	calls   int
	refresh func(bundle domain.CredentialBundle) (domain.CredentialBundle, error)
}

func (r *fakeRefresher) Refresh(ctx context.Context, bundle domain.CredentialBundle) (domain.CredentialBundle, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	return r.refresh(bundle)
}

type fakeAuthorizer struct {
	mu        sync.Mutex
	calls     int
	authorize func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error)
}

func (a *fakeAuthorizer) Authorize(ctx context.Context, userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	return a.authorize(userID, serviceID, scopes)
}

const (
	testClientID     = "client-1"
	testClientSecret = "client-secret-1"
)

func testBundle(accessToken string, expiry time.Time, refreshToken string) domain.CredentialBundle {
	return domain.CredentialBundle{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		Expiry:        expiry,
		Scopes:        []string{"https://www.googleapis.com/auth/gmail.send"},
		TokenEndpoint: "https://oauth2.googleapis.com/token",
		ClientID:      testClientID,
		ClientSecret:  testClientSecret,
	}
}

type lifecycleFixture struct {
	store      *fakeCredentialStore
	cipher     domain.TokenCipher
	refresher  *fakeRefresher
	authorizer *fakeAuthorizer
	manager    domain.CredentialManager
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	cipher, err := NewTokenCipher("test-secret")
	require.NoError(t, err)

	store := newFakeCredentialStore()

	refresher := &fakeRefresher{
		refresh: func(bundle domain.CredentialBundle) (domain.CredentialBundle, error) {
			return domain.CredentialBundle{}, errors.New("refresh not expected")
		},
	}

	authorizer := &fakeAuthorizer{
		authorize: func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
			return domain.CredentialBundle{}, domain.ErrAuthorizationDenied
		},
	}

	manager := NewTokenLifecycleManager(TokenLifecycleManagerDependencies{
		Store:        store,
		Cipher:       cipher,
		Refresher:    refresher,
		Authorizer:   authorizer,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	})

	return &lifecycleFixture{
		store:      store,
		cipher:     cipher,
		refresher:  refresher,
		authorizer: authorizer,
		manager:    manager,
	}
}

func (f *lifecycleFixture) seed(t *testing.T, userID string, serviceID domain.ServiceID, bundle domain.CredentialBundle) {
	t.Helper()

	raw, err := json.Marshal(bundle)
	require.NoError(t, err)

	envelope, err := f.cipher.Encrypt(string(raw))
	require.NoError(t, err)

	f.store.records[storeKey(userID, serviceID)] = envelope
}

func (f *lifecycleFixture) stored(t *testing.T, userID string, serviceID domain.ServiceID) domain.CredentialBundle {
	t.Helper()

	envelope, ok := f.store.records[storeKey(userID, serviceID)]
	require.True(t, ok, "no stored record for %s/%s", userID, serviceID)

	plaintext, err := f.cipher.Decrypt(envelope)
	require.NoError(t, err)

	var bundle domain.CredentialBundle
	require.NoError(t, json.Unmarshal([]byte(plaintext), &bundle))

	return bundle
}

func TestLifecycle_NoRecordGoesThroughInteractiveAuth(t *testing.T) {
	f := newLifecycleFixture(t)

	granted := testBundle("A1", time.Now().Add(time.Hour), "R1")
	f.authorizer.authorize = func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
		return granted, nil
	}

	bundle, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	require.NoError(t, err)
	assert.Equal(t, "A1", bundle.AccessToken)
	assert.Equal(t, 1, f.authorizer.calls)
	assert.Equal(t, 0, f.refresher.calls, "a missing record must never be refreshed")
	assert.Equal(t, 1, f.store.setCalls)
	assert.Equal(t, 0, f.store.updateCalls)

	assert.Len(t, f.store.records, 1)
	assert.Equal(t, "A1", f.stored(t, "u1", domain.ServiceMail).AccessToken)
}

func TestLifecycle_ValidRecordReturnsWithoutWrites(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seed(t, "u1", domain.ServiceMail, testBundle("A1", time.Now().Add(time.Hour), "R1"))

	bundle, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	require.NoError(t, err)
	assert.Equal(t, "A1", bundle.AccessToken)
	assert.Equal(t, 0, f.authorizer.calls)
	assert.Equal(t, 0, f.refresher.calls)
	assert.Equal(t, 0, f.store.setCalls)
	assert.Equal(t, 0, f.store.updateCalls)
}

func TestLifecycle_ExpiredRecordIsRefreshedOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seed(t, "u1", domain.ServiceMail, testBundle("A1", time.Now().Add(-time.Hour), "R1"))

	f.refresher.refresh = func(bundle domain.CredentialBundle) (domain.CredentialBundle, error) {
		refreshed := bundle
		refreshed.AccessToken = "A2"
		refreshed.Expiry = time.Now().Add(time.Hour)

		return refreshed, nil
	}

	bundle, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	require.NoError(t, err)
	assert.Equal(t, "A2", bundle.AccessToken)
	assert.Equal(t, 1, f.refresher.calls)
	assert.Equal(t, 0, f.authorizer.calls)
	assert.Equal(t, 0, f.store.setCalls)
	assert.Equal(t, 1, f.store.updateCalls)

	stored := f.stored(t, "u1", domain.ServiceMail)
	assert.Equal(t, "A2", stored.AccessToken)
	assert.Equal(t, "R1", stored.RefreshToken, "refresh token is kept when the provider does not rotate it")
}

func TestLifecycle_CorruptRecordForcesReauthorizationWithoutRefresh(t *testing.T) {
	f := newLifecycleFixture(t)
	f.store.records[storeKey("u1", domain.ServiceMail)] = "bm90LWEtcmVhbC1lbnZlbG9wZQ"

	granted := testBundle("A9", time.Now().Add(time.Hour), "R9")
	f.authorizer.authorize = func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
		return granted, nil
	}

	bundle, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	require.NoError(t, err)
	assert.Equal(t, "A9", bundle.AccessToken)
	assert.Equal(t, 0, f.refresher.calls, "a corrupt record must never be refreshed")
	assert.Equal(t, 1, f.authorizer.calls)
	assert.Equal(t, 1, f.store.updateCalls, "the existing record is overwritten, not re-created")
	assert.Equal(t, 0, f.store.setCalls)
}

func TestLifecycle_ExpiredWithoutRefreshTokenGoesInteractive(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seed(t, "u1", domain.ServiceMail, testBundle("A1", time.Now().Add(-time.Hour), ""))

	granted := testBundle("A2", time.Now().Add(time.Hour), "R2")
	f.authorizer.authorize = func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
		return granted, nil
	}

	bundle, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	require.NoError(t, err)
	assert.Equal(t, "A2", bundle.AccessToken)
	assert.Equal(t, 0, f.refresher.calls)
	assert.Equal(t, 1, f.authorizer.calls)
}

func TestLifecycle_InsufficientScopesGoInteractive(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seed(t, "u1", domain.ServiceCalendar, testBundle("A1", time.Now().Add(time.Hour), "R1"))

	granted := domain.CredentialBundle{
		AccessToken:  "A2",
		Expiry:       time.Now().Add(time.Hour),
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
	}
	f.authorizer.authorize = func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
		return granted, nil
	}

	bundle, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceCalendar, []string{"https://www.googleapis.com/auth/calendar"})

	require.NoError(t, err)
	assert.Equal(t, "A2", bundle.AccessToken)
	assert.Equal(t, 0, f.refresher.calls, "a scope upgrade needs consent, not a refresh")
	assert.Equal(t, 1, f.authorizer.calls)
}

func TestLifecycle_ClientMismatchSkipsRefresh(t *testing.T) {
	f := newLifecycleFixture(t)

	stale := testBundle("A1", time.Now().Add(-time.Hour), "R1")
	stale.ClientID = "old-client"
	f.seed(t, "u1", domain.ServiceMail, stale)

	granted := testBundle("A2", time.Now().Add(time.Hour), "R2")
	f.authorizer.authorize = func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
		return granted, nil
	}

	_, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	require.NoError(t, err)
	assert.Equal(t, 0, f.refresher.calls, "refresh against a re-registered client is doomed, skip the round trip")
	assert.Equal(t, 1, f.authorizer.calls)
}

func TestLifecycle_RejectedRefreshFallsBackToInteractive(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seed(t, "u1", domain.ServiceMail, testBundle("A1", time.Now().Add(-time.Hour), "R1"))

	f.refresher.refresh = func(bundle domain.CredentialBundle) (domain.CredentialBundle, error) {
		return domain.CredentialBundle{}, domain.ErrRefreshRejected
	}

	granted := testBundle("A2", time.Now().Add(time.Hour), "R2")
	f.authorizer.authorize = func(userID string, serviceID domain.ServiceID, scopes []string) (domain.CredentialBundle, error) {
		return granted, nil
	}

	bundle, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	require.NoError(t, err)
	assert.Equal(t, "A2", bundle.AccessToken)
	assert.Equal(t, 1, f.refresher.calls)
	assert.Equal(t, 1, f.authorizer.calls)
}

func TestLifecycle_TransientRefreshFailureIsSurfaced(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seed(t, "u1", domain.ServiceMail, testBundle("A1", time.Now().Add(-time.Hour), "R1"))

	f.refresher.refresh = func(bundle domain.CredentialBundle) (domain.CredentialBundle, error) {
		return domain.CredentialBundle{}, &domain.RefreshFailedError{Err: errors.New("connection reset")}
	}

	_, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})

	var refreshErr *domain.RefreshFailedError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, 0, f.authorizer.calls, "transient failures are not a consent problem")
	assert.Equal(t, 0, f.store.setCalls)
	assert.Equal(t, 0, f.store.updateCalls)
}

func TestLifecycle_StoreFailureIsSurfacedUnchanged(t *testing.T) {
	f := newLifecycleFixture(t)
	f.store.getErr = &domain.StoreUnavailableError{Op: "get", Err: errors.New("no reachable servers")}

	_, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, nil)

	var storeErr *domain.StoreUnavailableError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, 0, f.authorizer.calls, "a down database is not a re-auth prompt")
}

func TestLifecycle_AuthorizationDeniedPersistsNothing(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, nil)

	require.ErrorIs(t, err, domain.ErrAuthorizationDenied)
	assert.Empty(t, f.store.records)
	assert.Equal(t, 0, f.store.setCalls)
	assert.Equal(t, 0, f.store.updateCalls)
}

func TestLifecycle_ConcurrentRequestsRefreshOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seed(t, "u1", domain.ServiceMail, testBundle("A1", time.Now().Add(-time.Hour), "R1"))

	var counter int
	var counterMu sync.Mutex

	f.refresher.refresh = func(bundle domain.CredentialBundle) (domain.CredentialBundle, error) {
		counterMu.Lock()
		counter++
		n := counter
		counterMu.Unlock()

		refreshed := bundle
		refreshed.AccessToken = fmt.Sprintf("A%d", n+1)
		refreshed.Expiry = time.Now().Add(time.Hour)

		return refreshed, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.manager.GetUsableCredential(context.Background(), "u1", domain.ServiceMail, []string{"https://www.googleapis.com/auth/gmail.send"})
		}(i)
	}

	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, f.refresher.calls, "the second request sees the record the first one refreshed")
	assert.Equal(t, 1, f.store.updateCalls)
}
