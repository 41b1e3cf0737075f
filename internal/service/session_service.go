// Package service contains application services.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/docdesk/docdesk/internal/ctxkey"
	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/route"
	"github.com/docdesk/docdesk/internal/domain/session"
	"github.com/docdesk/docdesk/internal/port/inbound"
	"github.com/docdesk/docdesk/internal/port/outbound"
)

// Fallback messages used when the backend sent none.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgSessionExpired     = "Session expired"
)

const meterName = "github.com/docdesk/docdesk/internal/service"

// WithLocation returns a context carrying the location being served, so that
// an expiry during the call records a login redirect back to it.
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, ctxkey.LocationKey{}, location)
}

// LocationFrom returns the location stored by WithLocation, or "".
func LocationFrom(ctx context.Context) string {
	loc, _ := ctx.Value(ctxkey.LocationKey{}).(string)
	return loc
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMeterProvider records state transitions on the given meter provider.
func WithMeterProvider(mp metric.MeterProvider) SessionOption {
	return func(s *SessionService) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}

// SessionService is the session state machine. It exclusively owns the
// in-memory session and mirrors every token change into the token store
// before updating it.
//
// Backend calls are made without holding the lock: the REST adapter calls
// back into TokenRefreshed and SessionExpired while a call is in flight.
// Concurrent operations are last-writer-wins.
type SessionService struct {
	backend outbound.AuthBackend
	tokens  session.TokenStore
	logger  *slog.Logger
	now     func() time.Time

	meterProvider metric.MeterProvider
	transitions   metric.Int64Counter

	mu      sync.Mutex
	snap    session.Snapshot
	subs    map[int]chan session.Snapshot
	nextSub int
}

var _ inbound.SessionManager = (*SessionService)(nil)

// NewSessionService creates a SessionService. The session starts in the
// loading state until Start is called.
func NewSessionService(backend outbound.AuthBackend, tokens session.TokenStore, logger *slog.Logger, opts ...SessionOption) *SessionService {
	s := &SessionService{
		backend:       backend,
		tokens:        tokens,
		logger:        logger,
		now:           time.Now,
		meterProvider: noop.NewMeterProvider(),
		snap:          session.Snapshot{State: session.StateLoading, IsLoading: true},
		subs:          make(map[int]chan session.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	counter, err := s.meterProvider.Meter(meterName).Int64Counter(
		"docdesk.session.transitions",
		metric.WithDescription("Session state transitions by target state"),
	)
	if err != nil {
		logger.Warn("session transition counter unavailable", "error", err)
		counter, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter("docdesk.session.transitions")
	}
	s.transitions = counter
	return s
}

// Snapshot returns a copy of the current session.
func (s *SessionService) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Start rehydrates the session from the token store. An absent or expired
// token ends anonymous without a backend call; otherwise the profile is
// fetched and any failure clears the token.
func (s *SessionService) Start(ctx context.Context) session.Snapshot {
	s.setLoading()

	token, ok := s.tokens.Get(ctx)
	if !ok {
		return s.setAnonymous(ctx, "")
	}
	if auth.IsExpiredAt(token, s.now()) {
		s.logger.Debug("stored token expired", "fingerprint", auth.Fingerprint(token))
		s.tokens.Clear(ctx)
		return s.setAnonymous(ctx, "")
	}

	user, err := s.backend.Profile(ctx)
	if err != nil {
		s.logger.Info("failed to load user", "error", err)
		s.tokens.Clear(ctx)
		return s.setAnonymous(ctx, "")
	}
	// The profile call may have refreshed the token underneath us.
	if current, ok := s.tokens.Get(ctx); ok {
		token = current
	}
	return s.setAuthenticated(token, user)
}

// LoadUser re-fetches the profile for the held token. Failure clears the
// session, as at startup.
func (s *SessionService) LoadUser(ctx context.Context) error {
	token, ok := s.tokens.Get(ctx)
	if !ok {
		s.setAnonymous(ctx, "")
		return &session.SessionExpiredError{}
	}

	user, err := s.backend.Profile(ctx)
	if err != nil {
		s.tokens.Clear(ctx)
		s.setAnonymous(ctx, s.redirectFor(ctx))
		return err
	}
	if current, ok := s.tokens.Get(ctx); ok {
		token = current
	}
	s.setAuthenticated(token, user)
	return nil
}

// Login authenticates with creds. Invalid input is rejected with a
// *session.ValidationError and no state change; a rejected or failed call
// ends in the error state and returns *session.AuthError.
func (s *SessionService) Login(ctx context.Context, creds auth.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	s.setLoading()

	grant, err := s.backend.Login(ctx, creds)
	if err == nil && grant.User == nil {
		// Some backends return the token alone; the profile names the user.
		s.tokens.Set(ctx, grant.Token)
		grant.User, err = s.backend.Profile(ctx)
	}
	if err != nil {
		msg := session.Message(err, MsgLoginFailed)
		s.tokens.Clear(ctx)
		s.setError(msg)
		s.logger.Info("login failed", "error", err)
		return &session.AuthError{Op: "login", Message: msg, Cause: err}
	}

	s.tokens.Set(ctx, grant.Token)
	s.setAuthenticated(grant.Token, grant.User)
	s.logger.Info("login succeeded", "user_id", grant.User.ID, "fingerprint", auth.Fingerprint(grant.Token))
	return nil
}

// Register creates an account. Success does not authenticate: the session
// ends anonymous with no token so the caller can send the user to login.
func (s *SessionService) Register(ctx context.Context, reg auth.Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	s.setLoading()

	if err := s.backend.Register(ctx, reg); err != nil {
		msg := session.Message(err, MsgRegistrationFailed)
		s.tokens.Clear(ctx)
		s.setError(msg)
		s.logger.Info("registration failed", "error", err)
		return &session.AuthError{Op: "register", Message: msg, Cause: err}
	}

	s.tokens.Clear(ctx)
	s.setAnonymous(ctx, "")
	s.logger.Info("registration succeeded", "email", reg.Email)
	return nil
}

// Logout ends the session. The backend call is best-effort; the session
// always ends anonymous with the token cleared.
func (s *SessionService) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn("logout call failed", "error", err)
	}
	s.tokens.Clear(ctx)
	s.setAnonymous(ctx, "")
	s.logger.Info("logged out")
}

// Refresh trades the current token for a new one. On failure the token is
// cleared, the session ends anonymous with a login redirect, and a
// *session.SessionExpiredError is returned.
func (s *SessionService) Refresh(ctx context.Context) error {
	grant, err := s.backend.Refresh(ctx)
	if err != nil {
		s.tokens.Clear(ctx)
		s.setAnonymous(ctx, s.redirectFor(ctx))
		s.logger.Info("token refresh failed", "error", err, "message", session.Message(err, MsgSessionExpired))
		var expired *session.SessionExpiredError
		if errors.As(err, &expired) {
			return err
		}
		return &session.SessionExpiredError{Cause: err}
	}
	if current, _ := s.tokens.Get(ctx); current != grant.Token {
		s.tokens.Set(ctx, grant.Token)
	}
	s.applyGrant(grant)
	return nil
}

// UpdateProfile applies upd and keeps the in-memory user in sync.
func (s *SessionService) UpdateProfile(ctx context.Context, upd auth.ProfileUpdate) (*session.User, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	user, err := s.backend.UpdateProfile(ctx, upd)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.snap.State == session.StateAuthenticated {
		u := *user
		s.snap.User = &u
		s.publishLocked()
	}
	s.mu.Unlock()
	return user, nil
}

// ClearError leaves the error state without a backend call.
func (s *SessionService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State != session.StateError {
		return
	}
	s.snap = session.Snapshot{State: session.StateAnonymous}
	s.recordLocked(context.Background())
	s.publishLocked()
}

// TokenRefreshed is the REST adapter callback for a successful refresh.
// The adapter has already stored the token.
func (s *SessionService) TokenRefreshed(_ context.Context, grant *auth.Grant) {
	s.applyGrant(grant)
}

// SessionExpired is the REST adapter callback for an unrecoverable 401.
// The adapter has already cleared the store.
func (s *SessionService) SessionExpired(ctx context.Context) {
	s.setAnonymous(ctx, s.redirectFor(ctx))
}

// Subscribe streams a snapshot after every transition, starting with the
// current one. Slow subscribers only see the latest snapshot.
func (s *SessionService) Subscribe() (<-chan session.Snapshot, func()) {
	ch := make(chan session.Snapshot, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snap.Clone()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// applyGrant updates the token and user in place. Once the user is known the
// session becomes authenticated, unless a load is in progress, which finishes
// the transition itself.
func (s *SessionService) applyGrant(grant *auth.Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Token = grant.Token
	if grant.User != nil {
		u := *grant.User
		s.snap.User = &u
	}
	if s.snap.State != session.StateLoading && s.snap.User != nil {
		s.snap.State = session.StateAuthenticated
		s.snap.IsAuthenticated = true
		s.snap.IsLoading = false
		s.snap.Error = ""
		s.snap.Redirect = ""
		s.recordLocked(context.Background())
	}
	s.publishLocked()
}

func (s *SessionService) setLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.State = session.StateLoading
	s.snap.IsLoading = true
	s.snap.Error = ""
	s.recordLocked(context.Background())
	s.publishLocked()
}

func (s *SessionService) setAuthenticated(token string, user *session.User) session.Snapshot {
	var u *session.User
	if user != nil {
		copied := *user
		u = &copied
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = session.Snapshot{
		State:           session.StateAuthenticated,
		User:            u,
		Token:           token,
		IsAuthenticated: true,
	}
	s.recordLocked(context.Background())
	s.publishLocked()
	return s.snap.Clone()
}

func (s *SessionService) setAnonymous(ctx context.Context, redirect string) session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = session.Snapshot{
		State:    session.StateAnonymous,
		Redirect: redirect,
	}
	s.recordLocked(ctx)
	s.publishLocked()
	return s.snap.Clone()
}

func (s *SessionService) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = session.Snapshot{
		State: session.StateError,
		Error: msg,
	}
	s.recordLocked(context.Background())
	s.publishLocked()
}

// redirectFor returns the login location for the location carried by ctx.
func (s *SessionService) redirectFor(ctx context.Context) string {
	if loc := LocationFrom(ctx); loc != "" {
		return route.LoginLocation(loc)
	}
	return route.LoginPath
}

// recordLocked counts a transition into the current state. Caller must hold s.mu.
func (s *SessionService) recordLocked(ctx context.Context) {
	s.transitions.Add(context.WithoutCancel(ctx), 1,
		metric.WithAttributes(attribute.String("state", string(s.snap.State))))
}

// publishLocked hands the current snapshot to every subscriber, replacing any
// snapshot they have not consumed yet. Caller must hold s.mu.
func (s *SessionService) publishLocked() {
	snap := s.snap.Clone()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
