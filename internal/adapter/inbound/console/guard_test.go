package console

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docdesk/docdesk/internal/domain/route"
	"github.com/docdesk/docdesk/internal/domain/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGuard(t *testing.T) {
	loading := session.Snapshot{State: session.StateLoading, IsLoading: true}
	failed := session.Snapshot{State: session.StateError, Error: "Login failed"}

	tests := []struct {
		name         string
		access       route.Access
		snap         session.Snapshot
		target       string
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{"protected loading", route.Protected, loading, "/documents", http.StatusOK, "", "Loading your session"},
		{"protected anonymous", route.Protected, anonymous(), "/documents?page=2", http.StatusSeeOther, "/login?from=%2Fdocuments%3Fpage%3D2", ""},
		{"protected error state", route.Protected, failed, "/profile", http.StatusSeeOther, "/login?from=%2Fprofile", ""},
		{"protected authenticated", route.Protected, authenticated(), "/documents", http.StatusOK, "", "rendered"},
		{"public-only loading", route.PublicOnly, loading, "/login", http.StatusOK, "", "Loading your session"},
		{"public-only anonymous", route.PublicOnly, anonymous(), "/login", http.StatusOK, "", "rendered"},
		{"public-only error state", route.PublicOnly, failed, "/login", http.StatusOK, "", "rendered"},
		{"public-only authenticated", route.PublicOnly, authenticated(), "/login", http.StatusSeeOther, "/dashboard", ""},
		{"public-only authenticated with from", route.PublicOnly, authenticated(), "/login?from=%2Fprofile", http.StatusSeeOther, "/profile", ""},
		{"public-only authenticated with foreign from", route.PublicOnly, authenticated(), "/login?from=%2F%2Fevil.example", http.StatusSeeOther, "/dashboard", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, newFakeSessions(tt.snap), nil)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("rendered"))
			})
			handler := s.Guard(tt.access, s.sessions)(next)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestGuard_LoadingRefreshesItself(t *testing.T) {
	s := newTestServer(t, newFakeSessions(session.Snapshot{State: session.StateLoading, IsLoading: true}), nil)
	handler := s.Guard(route.Protected, s.sessions)(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if got := rec.Header().Get("Refresh"); got != "1" {
		t.Errorf("Refresh = %q, want 1", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestGuard_CountsDecisions(t *testing.T) {
	sessions := newFakeSessions(anonymous())
	s := newTestServer(t, sessions, nil)
	handler := s.Guard(route.Protected, sessions)(http.NotFoundHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile", nil))
	}
	sessions.set(authenticated())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile", nil))

	if got := testutil.ToFloat64(s.metrics.GuardDecisions.WithLabelValues("redirect_login")); got != 2 {
		t.Errorf("redirect_login = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.metrics.GuardDecisions.WithLabelValues("render")); got != 1 {
		t.Errorf("render = %v, want 1", got)
	}
}
