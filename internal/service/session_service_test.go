package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/docdesk/docdesk/internal/adapter/outbound/rest"
	"github.com/docdesk/docdesk/internal/adapter/outbound/tokenstore"
	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
)

// fakeBackend is a scripted outbound.AuthBackend.
type fakeBackend struct {
	mu sync.Mutex

	loginGrant   *auth.Grant
	loginErr     error
	registerErr  error
	logoutErr    error
	refreshGrant *auth.Grant
	refreshErr   error
	profileUser  *session.User
	profileErr   error
	updateUser   *session.User
	// persist, when set, receives refreshed tokens the way the REST adapter
	// stores them.
	persist session.TokenStore

	calls map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		profileUser: &session.User{ID: "u1", Email: "a@b.com", FirstName: "Ada"},
		calls:       make(map[string]int),
	}
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Login(ctx context.Context, creds auth.Credentials) (*auth.Grant, error) {
	f.hit("login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	g := *f.loginGrant
	return &g, nil
}

func (f *fakeBackend) Register(ctx context.Context, reg auth.Registration) error {
	f.hit("register")
	return f.registerErr
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.hit("logout")
	return f.logoutErr
}

func (f *fakeBackend) Refresh(ctx context.Context) (*auth.Grant, error) {
	f.hit("refresh")
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	g := *f.refreshGrant
	if f.persist != nil {
		f.persist.Set(ctx, g.Token)
	}
	return &g, nil
}

func (f *fakeBackend) Profile(ctx context.Context) (*session.User, error) {
	f.hit("profile")
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	u := *f.profileUser
	return &u, nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, upd auth.ProfileUpdate) (*session.User, error) {
	f.hit("update_profile")
	u := *f.updateUser
	return &u, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func testSessionEnv(t *testing.T, token string) (*SessionService, *fakeBackend, *tokenstore.MemoryStore) {
	t.Helper()
	fb := newFakeBackend()
	store := tokenstore.NewMemoryStore(token)
	return NewSessionService(fb, store, testLogger()), fb, store
}

// countingStore counts writes reaching the wrapped store.
type countingStore struct {
	session.TokenStore

	mu   sync.Mutex
	sets int
}

func (c *countingStore) Set(ctx context.Context, token string) {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	c.TokenStore.Set(ctx, token)
}

func (c *countingStore) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func storedToken(store session.TokenStore) string {
	tok, _ := store.Get(context.Background())
	return tok
}

// --- Startup ---

func TestSessionService_InitialStateIsLoading(t *testing.T) {
	t.Parallel()
	svc, _, _ := testSessionEnv(t, "")
	snap := svc.Snapshot()
	if snap.State != session.StateLoading || !snap.IsLoading {
		t.Errorf("initial snapshot = %+v, want loading", snap)
	}
}

func TestSessionService_Start_NoToken(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")

	snap := svc.Start(context.Background())
	if snap.State != session.StateAnonymous || snap.IsAuthenticated || snap.IsLoading {
		t.Errorf("Start() = %+v, want anonymous", snap)
	}
	if fb.count("profile") != 0 {
		t.Error("no profile call expected without a token")
	}
}

func TestSessionService_Start_ExpiredToken(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, "")
	store.Set(context.Background(), signedToken(t, time.Now().Add(-10*time.Second)))

	snap := svc.Start(context.Background())
	if snap.State != session.StateAnonymous {
		t.Errorf("State = %s, want anonymous", snap.State)
	}
	if storedToken(store) != "" {
		t.Error("store should be empty")
	}
	if fb.count("profile") != 0 {
		t.Errorf("profile calls = %d, want 0", fb.count("profile"))
	}
}

func TestSessionService_Start_MalformedToken(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, "not-a-jwt")

	if snap := svc.Start(context.Background()); snap.State != session.StateAnonymous {
		t.Errorf("State = %s, want anonymous", snap.State)
	}
	if storedToken(store) != "" || fb.count("profile") != 0 {
		t.Error("malformed token should be treated as expired")
	}
}

func TestSessionService_Start_ValidToken(t *testing.T) {
	t.Parallel()
	tok := signedToken(t, time.Now().Add(time.Hour))
	svc, _, store := testSessionEnv(t, tok)

	snap := svc.Start(context.Background())
	if snap.State != session.StateAuthenticated || !snap.IsAuthenticated {
		t.Fatalf("Start() = %+v, want authenticated", snap)
	}
	if snap.User == nil || snap.User.ID != "u1" {
		t.Errorf("User = %+v", snap.User)
	}
	if snap.Token != tok || storedToken(store) != tok {
		t.Error("token should be held in memory and in the store")
	}
}

func TestSessionService_Start_ProfileFailureClearsToken(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, signedToken(t, time.Now().Add(time.Hour)))
	fb.profileErr = &session.NetworkError{Op: "GET /api/profile", Cause: errors.New("connection refused")}

	snap := svc.Start(context.Background())
	if snap.State != session.StateAnonymous {
		t.Errorf("State = %s, want anonymous", snap.State)
	}
	if storedToken(store) != "" {
		t.Error("store should be cleared")
	}
}

func TestSessionService_Start_UsesClock(t *testing.T) {
	t.Parallel()
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	fb := newFakeBackend()
	store := tokenstore.NewMemoryStore(signedToken(t, exp))
	svc := NewSessionService(fb, store, testLogger(), WithClock(func() time.Time { return exp.Add(time.Second) }))

	if snap := svc.Start(context.Background()); snap.State != session.StateAnonymous {
		t.Errorf("State = %s, want anonymous at a clock past expiry", snap.State)
	}
}

// --- Login ---

func TestSessionService_Login_Success(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, "")
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1", Email: "a@b.com"}}
	svc.Start(context.Background())

	if err := svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	snap := svc.Snapshot()
	if !snap.IsAuthenticated || snap.State != session.StateAuthenticated {
		t.Errorf("snapshot = %+v, want authenticated", snap)
	}
	if storedToken(store) != "T1" || snap.Token != "T1" {
		t.Errorf("store = %q, snapshot token = %q, want T1", storedToken(store), snap.Token)
	}
}

func TestSessionService_Login_TokenOnlyLoadsProfile(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	fb.loginGrant = &auth.Grant{Token: "T1"}

	if err := svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if u := svc.Snapshot().User; u == nil || u.FirstName != "Ada" {
		t.Errorf("User = %+v, want profile user", u)
	}
}

func TestSessionService_Login_Failure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"backend message", &session.ClientError{Status: 401, Message: "Invalid email or password"}, "Invalid email or password"},
		{"no message", &session.ClientError{Status: 400}, MsgLoginFailed},
		{"server error", &session.ServerError{Status: 500, Message: "database down"}, "database down"},
		{"network", &session.NetworkError{Op: "POST /api/login", Cause: errors.New("timeout")}, MsgLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, fb, store := testSessionEnv(t, "stale")
			fb.loginErr = tt.err

			err := svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})
			if !errors.Is(err, session.ErrAuth) {
				t.Fatalf("err = %v, want ErrAuth", err)
			}
			if !errors.Is(err, tt.err) {
				t.Error("AuthError should wrap the adapter failure")
			}
			snap := svc.Snapshot()
			if snap.State != session.StateError || snap.Error != tt.wantMsg {
				t.Errorf("snapshot = %+v, want error %q", snap, tt.wantMsg)
			}
			if snap.User != nil || snap.IsAuthenticated {
				t.Error("user should be cleared")
			}
			if storedToken(store) != "" {
				t.Error("store should be cleared")
			}
		})
	}
}

func TestSessionService_Login_ValidationNoStateChange(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	svc.Start(context.Background())

	err := svc.Login(context.Background(), auth.Credentials{Email: "not-an-email", Password: "x"})
	var ve *session.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if fb.count("login") != 0 {
		t.Error("no backend call expected")
	}
	if svc.Snapshot().State != session.StateAnonymous {
		t.Errorf("State = %s, want unchanged anonymous", svc.Snapshot().State)
	}
}

// --- Register ---

func validRegistration() auth.Registration {
	return auth.Registration{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Country:         "GB",
		AgreeToTerms:    true,
	}
}

func TestSessionService_Register_SuccessDoesNotAuthenticate(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, "T0")

	if err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	snap := svc.Snapshot()
	if snap.IsAuthenticated || snap.State != session.StateAnonymous {
		t.Errorf("snapshot = %+v, want anonymous", snap)
	}
	if storedToken(store) != "" {
		t.Error("registration must leave no token")
	}
	if fb.count("register") != 1 {
		t.Errorf("register calls = %d", fb.count("register"))
	}
}

func TestSessionService_Register_Failure(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	fb.registerErr = &session.ClientError{Status: 400, Message: "User already exists"}

	err := svc.Register(context.Background(), validRegistration())
	var ae *session.AuthError
	if !errors.As(err, &ae) || ae.Op != "register" {
		t.Fatalf("err = %v, want register AuthError", err)
	}
	if snap := svc.Snapshot(); snap.State != session.StateError || snap.Error != "User already exists" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSessionService_Register_Fallback(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	fb.registerErr = &session.ServerError{Status: 502}

	_ = svc.Register(context.Background(), validRegistration())
	if got := svc.Snapshot().Error; got != MsgRegistrationFailed {
		t.Errorf("Error = %q, want %q", got, MsgRegistrationFailed)
	}
}

func TestSessionService_Register_Validation(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	reg := validRegistration()
	reg.ConfirmPassword = "different"

	if err := svc.Register(context.Background(), reg); !errors.Is(err, session.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if fb.count("register") != 0 {
		t.Error("no backend call expected")
	}
}

// --- Logout ---

func TestSessionService_Logout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"backend ok", nil},
		{"backend unreachable", &session.NetworkError{Op: "POST /api/logout", Cause: errors.New("refused")}},
		{"backend 500", &session.ServerError{Status: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, fb, store := testSessionEnv(t, "")
			fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}
			fb.logoutErr = tt.err
			if err := svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"}); err != nil {
				t.Fatal(err)
			}

			svc.Logout(context.Background())

			snap := svc.Snapshot()
			if snap.State != session.StateAnonymous || snap.IsAuthenticated || snap.User != nil || snap.Token != "" {
				t.Errorf("snapshot = %+v, want cleared anonymous", snap)
			}
			if storedToken(store) != "" {
				t.Error("store should be cleared")
			}
			if fb.count("logout") != 1 {
				t.Errorf("logout calls = %d, want 1", fb.count("logout"))
			}
		})
	}
}

func TestSessionService_Logout_WithoutTokenStillCallsBackend(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, "")
	svc.Start(context.Background())

	svc.Logout(context.Background())

	if fb.count("logout") != 1 {
		t.Errorf("logout calls = %d, want 1", fb.count("logout"))
	}
	if svc.Snapshot().State != session.StateAnonymous || storedToken(store) != "" {
		t.Errorf("snapshot = %+v, want anonymous with empty store", svc.Snapshot())
	}
}

// --- Refresh ---

func TestSessionService_Refresh_Success(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, "")
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}
	fb.refreshGrant = &auth.Grant{Token: "T2", User: &session.User{ID: "u1", FirstName: "Ada"}}
	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	snap := svc.Snapshot()
	if snap.State != session.StateAuthenticated || snap.Token != "T2" || snap.User.FirstName != "Ada" {
		t.Errorf("snapshot = %+v", snap)
	}
	if storedToken(store) != "T2" {
		t.Errorf("store = %q, want T2", storedToken(store))
	}
}

func TestSessionService_Refresh_AdapterPersistedTokenNotRewritten(t *testing.T) {
	t.Parallel()
	fb := newFakeBackend()
	store := &countingStore{TokenStore: tokenstore.NewMemoryStore("")}
	fb.persist = store
	svc := NewSessionService(fb, store, testLogger())
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}
	fb.refreshGrant = &auth.Grant{Token: "T2", User: &session.User{ID: "u1"}}
	if err := svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if storedToken(store) != "T2" {
		t.Errorf("store = %q, want T2", storedToken(store))
	}
	// One write for login, one by the adapter on refresh.
	if n := store.setCount(); n != 2 {
		t.Errorf("Set calls = %d, want 2", n)
	}
}

func TestSessionService_Refresh_Failure(t *testing.T) {
	t.Parallel()
	svc, fb, store := testSessionEnv(t, "")
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}
	fb.refreshErr = &session.ClientError{Status: 401, Message: "refresh token expired"}
	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})

	err := svc.Refresh(WithLocation(context.Background(), "/documents?page=2"))
	if !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if !errors.Is(err, session.ErrUnauthenticated) {
		t.Error("the 401 should stay in the chain")
	}
	snap := svc.Snapshot()
	if snap.State != session.StateAnonymous {
		t.Errorf("State = %s, want anonymous", snap.State)
	}
	if snap.Redirect != "/login?from=%2Fdocuments%3Fpage%3D2" {
		t.Errorf("Redirect = %q", snap.Redirect)
	}
	if storedToken(store) != "" {
		t.Error("store should be cleared")
	}
}

// --- Error state ---

func TestSessionService_ClearError(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	fb.loginErr = &session.ClientError{Status: 401, Message: "nope"}
	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})

	svc.ClearError()
	if snap := svc.Snapshot(); snap.State != session.StateAnonymous || snap.Error != "" {
		t.Errorf("snapshot = %+v, want anonymous without error", snap)
	}

	fb.loginErr = nil
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}
	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})
	svc.ClearError()
	if svc.Snapshot().State != session.StateAuthenticated {
		t.Error("ClearError must not touch a non-error session")
	}
}

// --- Adapter callbacks ---

func TestSessionService_Callbacks(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}
	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})

	svc.TokenRefreshed(context.Background(), &auth.Grant{Token: "T2"})
	snap := svc.Snapshot()
	if snap.Token != "T2" || snap.User == nil || snap.User.ID != "u1" {
		t.Errorf("after refresh callback = %+v", snap)
	}

	svc.SessionExpired(WithLocation(context.Background(), "/profile"))
	snap = svc.Snapshot()
	if snap.State != session.StateAnonymous || snap.Token != "" {
		t.Errorf("after expiry callback = %+v", snap)
	}
	if snap.Redirect != "/login?from=%2Fprofile" {
		t.Errorf("Redirect = %q", snap.Redirect)
	}

	svc.SessionExpired(context.Background())
	if got := svc.Snapshot().Redirect; got != "/login" {
		t.Errorf("Redirect without location = %q, want /login", got)
	}
}

func TestSessionService_UpdateProfile(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1", FirstName: "Ada"}}
	fb.updateUser = &session.User{ID: "u1", FirstName: "Augusta"}
	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})

	u, err := svc.UpdateProfile(context.Background(), auth.ProfileUpdate{FirstName: "Augusta"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if u.FirstName != "Augusta" || svc.Snapshot().User.FirstName != "Augusta" {
		t.Errorf("user not synced: returned %+v, session %+v", u, svc.Snapshot().User)
	}
}

// --- Subscribe ---

func TestSessionService_Subscribe(t *testing.T) {
	t.Parallel()
	svc, fb, _ := testSessionEnv(t, "")
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}

	ch, cancel := svc.Subscribe()
	first := <-ch
	if first.State != session.StateLoading {
		t.Errorf("first snapshot = %s, want current (loading)", first.State)
	}

	svc.Start(context.Background())
	if got := (<-ch).State; got != session.StateAnonymous {
		t.Errorf("latest after Start = %s, want anonymous", got)
	}

	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})
	if got := (<-ch).State; got != session.StateAuthenticated {
		t.Errorf("latest after Login = %s, want authenticated", got)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	svc.Logout(context.Background())
}

// --- Metrics ---

func TestSessionService_RecordsTransitions(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	fb := newFakeBackend()
	fb.loginGrant = &auth.Grant{Token: "T1", User: &session.User{ID: "u1"}}
	svc := NewSessionService(fb, tokenstore.NewMemoryStore(""), testLogger(), WithMeterProvider(mp))

	svc.Start(context.Background())
	_ = svc.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "docdesk.session.transitions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("state"))
				got[v.AsString()] = dp.Value
			}
		}
	}
	// Start: loading, anonymous. Login: loading, authenticated.
	want := map[string]int64{"loading": 2, "anonymous": 1, "authenticated": 1}
	for state, n := range want {
		if got[state] != n {
			t.Errorf("transitions to %s = %d, want %d (all: %v)", state, got[state], n, got)
		}
	}
}

// --- With the REST adapter ---

func TestSessionService_WithRESTClient_ExpiryRedirects(t *testing.T) {
	t.Parallel()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/profile":
			if r.Header.Get("Authorization") == "Bearer T2" {
				_ = json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"_id": "u1"}})
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
		case "/api/refresh":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"refresh expired"}`))
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	store := tokenstore.NewMemoryStore(signedToken(t, time.Now().Add(time.Hour)))
	client := rest.New(srv.URL, store, rest.WithLogger(testLogger()))
	svc := NewSessionService(client, store, testLogger())
	client.OnTokenRefreshed(svc.TokenRefreshed)
	client.OnSessionExpired(svc.SessionExpired)

	// The token is unexpired locally but the backend rejects it.
	if snap := svc.Start(context.Background()); snap.State != session.StateAnonymous {
		t.Fatalf("Start() = %s, want anonymous", snap.State)
	}
	if storedToken(store) != "" {
		t.Error("store should be cleared")
	}

	store.Set(context.Background(), "T1")
	ctx := WithLocation(context.Background(), "/documents")
	err := svc.LoadUser(ctx)
	if !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("LoadUser() err = %v, want ErrSessionExpired", err)
	}
	if got := svc.Snapshot().Redirect; got != "/login?from=%2Fdocuments" {
		t.Errorf("Redirect = %q", got)
	}
}
