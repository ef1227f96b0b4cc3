package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/renangcr/devProperties/internal/app"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/domain"
	"github.com/renangcr/devProperties/internal/platform/config"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockListings struct {
	uploadImageFn      func(ctx context.Context, ownerID uuid.UUID, contentType string, data []byte) (domain.ImageRef, error)
	deleteDraftImageFn func(ctx context.Context, ownerID, imageID uuid.UUID) error
	draftImagesFn      func(ctx context.Context, ownerID uuid.UUID) ([]domain.ImageRef, error)
	imageFn            func(ctx context.Context, imageID uuid.UUID) (*domain.Image, error)
	createListingFn    func(ctx context.Context, ownerID uuid.UUID, in app.ListingInput) (*domain.Listing, error)
	listOwnFn          func(ctx context.Context, ownerID uuid.UUID) ([]*domain.Listing, error)
	deleteListingFn    func(ctx context.Context, ownerID, listingID uuid.UUID) error
	latestFn           func(ctx context.Context, limit int) ([]*domain.Listing, error)
	searchFn           func(ctx context.Context, term string) ([]*domain.Listing, error)
	byModalityFn       func(ctx context.Context, modality domain.Modality) ([]*domain.Listing, error)
	getFn              func(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error)
	suggestFn          func(ctx context.Context, excludeID uuid.UUID) (*domain.Listing, error)
}

func (m *mockListings) UploadImage(ctx context.Context, ownerID uuid.UUID, contentType string, data []byte) (domain.ImageRef, error) {
	if m.uploadImageFn != nil {
		return m.uploadImageFn(ctx, ownerID, contentType, data)
	}
	return domain.ImageRef{ID: uuid.New(), OwnerID: ownerID, ContentType: contentType}, nil
}

func (m *mockListings) DeleteDraftImage(ctx context.Context, ownerID, imageID uuid.UUID) error {
	if m.deleteDraftImageFn != nil {
		return m.deleteDraftImageFn(ctx, ownerID, imageID)
	}
	return nil
}

func (m *mockListings) DraftImages(ctx context.Context, ownerID uuid.UUID) ([]domain.ImageRef, error) {
	if m.draftImagesFn != nil {
		return m.draftImagesFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockListings) Image(ctx context.Context, imageID uuid.UUID) (*domain.Image, error) {
	if m.imageFn != nil {
		return m.imageFn(ctx, imageID)
	}
	return nil, domain.ErrImageNotFound
}

func (m *mockListings) CreateListing(ctx context.Context, ownerID uuid.UUID, in app.ListingInput) (*domain.Listing, error) {
	if m.createListingFn != nil {
		return m.createListingFn(ctx, ownerID, in)
	}
	return &domain.Listing{ID: uuid.New(), OwnerID: ownerID, Title: in.Title}, nil
}

func (m *mockListings) ListOwn(ctx context.Context, ownerID uuid.UUID) ([]*domain.Listing, error) {
	if m.listOwnFn != nil {
		return m.listOwnFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockListings) DeleteListing(ctx context.Context, ownerID, listingID uuid.UUID) error {
	if m.deleteListingFn != nil {
		return m.deleteListingFn(ctx, ownerID, listingID)
	}
	return nil
}

func (m *mockListings) Latest(ctx context.Context, limit int) ([]*domain.Listing, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockListings) Search(ctx context.Context, term string) ([]*domain.Listing, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, term)
	}
	return nil, nil
}

func (m *mockListings) ByModality(ctx context.Context, modality domain.Modality) ([]*domain.Listing, error) {
	if m.byModalityFn != nil {
		return m.byModalityFn(ctx, modality)
	}
	return nil, nil
}

func (m *mockListings) Get(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, listingID)
	}
	return nil, domain.ErrListingNotFound
}

func (m *mockListings) Suggest(ctx context.Context, excludeID uuid.UUID) (*domain.Listing, error) {
	if m.suggestFn != nil {
		return m.suggestFn(ctx, excludeID)
	}
	return nil, nil
}

type mockIdentity struct {
	signInFn        func(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error)
	createAccountFn func(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error)
	updateProfileFn func(ctx context.Context, clientID, uid, displayName string) error
	signOutFn       func(ctx context.Context, clientID string) error
}

func (m *mockIdentity) SignIn(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, clientID, email, password)
	}
	return nil, domain.ErrInvalidCredentials
}

func (m *mockIdentity) CreateAccount(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, clientID, email, password)
	}
	return nil, domain.ErrEmailTaken
}

func (m *mockIdentity) UpdateProfile(ctx context.Context, clientID, uid, displayName string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, clientID, uid, displayName)
	}
	return nil
}

func (m *mockIdentity) SignOut(ctx context.Context, clientID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, clientID)
	}
	return nil
}

// fakeProvider is an in-memory identity provider behind the registry. Each
// client's subscription receives its current binding, then every change.
type fakeProvider struct {
	mu    sync.Mutex
	bound map[string]*domain.AuthUser
	subs  map[string]func(*domain.AuthUser)
	// silent withholds the initial notification, leaving new instances unresolved.
	silent bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		bound: make(map[string]*domain.AuthUser),
		subs:  make(map[string]func(*domain.AuthUser)),
	}
}

func (p *fakeProvider) subscriber(clientID string) authstate.Subscriber {
	return authstate.SubscriberFunc(func(_ context.Context, fn func(*domain.AuthUser)) (func(), error) {
		p.mu.Lock()
		p.subs[clientID] = fn
		user, silent := p.bound[clientID], p.silent
		p.mu.Unlock()

		if !silent {
			fn(user)
		}
		return func() {
			p.mu.Lock()
			delete(p.subs, clientID)
			p.mu.Unlock()
		}, nil
	})
}

// set binds user to clientID (nil signs out) and notifies a live subscription.
func (p *fakeProvider) set(clientID string, user *domain.AuthUser) {
	p.mu.Lock()
	if user == nil {
		delete(p.bound, clientID)
	} else {
		u := *user
		p.bound[clientID] = &u
	}
	fn := p.subs[clientID]
	p.mu.Unlock()

	if fn != nil {
		fn(user)
	}
}

func (p *fakeProvider) setSilent(silent bool) {
	p.mu.Lock()
	p.silent = silent
	p.mu.Unlock()
}

// subscribed returns the client IDs with a live subscription.
func (p *fakeProvider) subscribed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	return ids
}

// bindingIdentity wires a mockIdentity to the provider the way the real identity service behaves.
func bindingIdentity(p *fakeProvider, user domain.AuthUser) *mockIdentity {
	return &mockIdentity{
		signInFn: func(_ context.Context, clientID, _, _ string) (*domain.AuthUser, error) {
			p.set(clientID, &user)
			u := user
			return &u, nil
		},
		signOutFn: func(_ context.Context, clientID string) error {
			p.set(clientID, nil)
			return nil
		},
	}
}

type recordingGuardObserver struct {
	mu        sync.Mutex
	decisions []string
}

func (r *recordingGuardObserver) GuardDecision(access authstate.Access, decision authstate.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, access.String()+":"+decision.String())
}

func (r *recordingGuardObserver) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.decisions...)
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:          "test",
		Port:            "8080",
		AppURL:          "http://localhost:8080",
		SessionSecret:   "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:   time.Hour,
		AuthResolveWait: 200 * time.Millisecond,
		ClientIdleTTL:   time.Hour,
		MaxImageBytes:   1 << 20,
		AuthRateLimit:   1000,
		AuthRateBurst:   1000,
		ListingsOnHome:  24,
	}
}

type testEnv struct {
	srv      *Server
	provider *fakeProvider
	registry *authstate.Registry
}

func newTestServer(t *testing.T, listings listingService, identity identityService, opts ...Option) *testEnv {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), listings, identity, opts...)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, listings listingService, identity identityService, opts ...Option) *testEnv {
	t.Helper()

	provider := newFakeProvider()
	registry := authstate.NewRegistry(provider.subscriber, cfg.ClientIdleTTL)
	t.Cleanup(registry.Close)

	srv, err := NewServer(cfg, listings, identity, registry, nil, opts...)
	require.NoError(t, err)

	return &testEnv{srv: srv, provider: provider, registry: registry}
}

func withHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

// browser replays cookies between requests like a real user agent.
type browser struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, env *testEnv) *browser {
	return &browser{t: t, env: env, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.send(httptest.NewRequest(http.MethodGet, path, nil))
}

// post submits form with the CSRF token issued on an earlier GET.
func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if token, ok := b.cookies["csrf_token"]; ok {
		form.Set("csrf_token", token.Value)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.send(req)
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.env.srv.echo.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) csrfToken() string {
	b.t.Helper()
	token, ok := b.cookies["csrf_token"]
	require.True(b.t, ok, "no csrf cookie issued yet")
	return token.Value
}

// signIn walks the login form against a provider-backed identity mock.
func (b *browser) signIn() {
	b.t.Helper()
	b.get("/login")
	rec := b.post("/login", url.Values{"email": {"ana@example.com"}, "password": {"secret123"}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code)
	require.Equal(b.t, "/dashboard", rec.Header().Get("Location"))
}
