package console

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/docdesk/docdesk/internal/domain/document"
	"github.com/docdesk/docdesk/internal/domain/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name         string
		from         string
		err          error
		wantStatus   int
		wantLocation string
		wantBody     string
		wantResult   string
	}{
		{
			name:         "success returns to from",
			from:         "/documents?page=2",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/documents?page=2",
			wantResult:   "ok",
		},
		{
			name:         "success without from goes home",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/dashboard",
			wantResult:   "ok",
		},
		{
			name:         "foreign from goes home",
			from:         "https://evil.example/phish",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/dashboard",
			wantResult:   "ok",
		},
		{
			name:       "backend rejection shows its message",
			err:        &session.AuthError{Op: "login", Message: "Invalid credentials"},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Invalid credentials",
			wantResult: "rejected",
		},
		{
			name:       "rejection without a message falls back",
			err:        &session.AuthError{Op: "login", Cause: &session.NetworkError{Op: "login", Cause: errors.New("refused")}},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Login failed",
			wantResult: "rejected",
		},
		{
			name:       "validation failure",
			err:        &session.ValidationError{Field: "email", Message: "Please enter a valid email"},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "Please enter a valid email",
			wantResult: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newFakeSessions(anonymous())
			sessions.loginErr = tt.err
			s := newTestServer(t, sessions, nil)

			rec := postForm(t, s.Handler(), "/login", url.Values{
				"email":    {"ada@example.com"},
				"password": {"hunter22"},
				"from":     {tt.from},
			})

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			body := rec.Body.String()
			if tt.wantBody != "" && !strings.Contains(body, tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
			if strings.Contains(body, "hunter22") {
				t.Error("password echoed back into the form")
			}
			if len(sessions.logins) != 1 || sessions.logins[0].Email != "ada@example.com" || sessions.logins[0].Password != "hunter22" {
				t.Errorf("logins = %+v", sessions.logins)
			}
			if got := testutil.ToFloat64(s.metrics.FormSubmissions.WithLabelValues("login", tt.wantResult)); got != 1 {
				t.Errorf("form_submissions{login,%s} = %v, want 1", tt.wantResult, got)
			}
		})
	}
}

func TestLogin_FailureKeepsFromAndEmail(t *testing.T) {
	sessions := newFakeSessions(anonymous())
	sessions.loginErr = &session.AuthError{Op: "login", Message: "Invalid credentials"}
	s := newTestServer(t, sessions, nil)

	rec := postForm(t, s.Handler(), "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"wrong"},
		"from":     {"/profile"},
	})

	body := rec.Body.String()
	if !strings.Contains(body, `value="ada@example.com"`) {
		t.Error("email not echoed into the re-rendered form")
	}
	if !strings.Contains(body, `name="from" value="/profile"`) {
		t.Error("from not carried into the re-rendered form")
	}
}

func TestLoginPage_CarriesFrom(t *testing.T) {
	s := newTestServer(t, newFakeSessions(anonymous()), nil)

	rec := get(t, s.Handler(), "/login?from=%2Fdocuments")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="from" value="/documents"`) {
		t.Error("login form does not carry from")
	}
}

func TestRegister(t *testing.T) {
	form := url.Values{
		"firstName":       {"Ada"},
		"lastName":        {"Lovelace"},
		"email":           {"ada@example.com"},
		"country":         {"UK"},
		"password":        {"analytical"},
		"confirmPassword": {"analytical"},
		"agreeToTerms":    {"true"},
	}

	t.Run("success redirects to login", func(t *testing.T) {
		sessions := newFakeSessions(anonymous())
		s := newTestServer(t, sessions, nil)

		rec := postForm(t, s.Handler(), "/register", form)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		if got := rec.Header().Get("Location"); got != "/login" {
			t.Errorf("Location = %q, want /login", got)
		}
		if len(sessions.registers) != 1 {
			t.Fatalf("registers = %d, want 1", len(sessions.registers))
		}
		reg := sessions.registers[0]
		if reg.FirstName != "Ada" || reg.ConfirmPassword != "analytical" || !reg.AgreeToTerms || reg.Country != "UK" {
			t.Errorf("registration = %+v", reg)
		}
	})

	t.Run("backend rejection re-renders", func(t *testing.T) {
		sessions := newFakeSessions(anonymous())
		sessions.registerErr = &session.AuthError{Op: "register", Message: "User already exists"}
		s := newTestServer(t, sessions, nil)

		rec := postForm(t, s.Handler(), "/register", form)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "User already exists") {
			t.Error("body missing backend message")
		}
		if !strings.Contains(body, `value="Lovelace"`) {
			t.Error("last name not echoed")
		}
		if strings.Contains(body, "analytical") {
			t.Error("password echoed back into the form")
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		sessions := newFakeSessions(anonymous())
		sessions.registerErr = &session.ValidationError{Field: "agreeToTerms", Message: "You must agree to the terms"}
		s := newTestServer(t, sessions, nil)

		rec := postForm(t, s.Handler(), "/register", form)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "You must agree to the terms") {
			t.Error("body missing validation message")
		}
	})
}

func TestLogout(t *testing.T) {
	sessions := newFakeSessions(authenticated())
	s := newTestServer(t, sessions, nil)

	rec := postForm(t, s.Handler(), "/logout", url.Values{})

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("got %d %q, want 303 /login", rec.Code, rec.Header().Get("Location"))
	}
	if sessions.logouts != 1 {
		t.Errorf("logouts = %d, want 1", sessions.logouts)
	}
	if sessions.Snapshot().IsAuthenticated {
		t.Error("session still authenticated after logout")
	}
}

func TestDashboard(t *testing.T) {
	backend := &fakeBackend{stats: &document.Stats{}}
	backend.stats.Stats.TotalDocuments = 42
	backend.stats.Stats.TotalSize = 3 * 1024 * 1024
	backend.stats.Stats.RecentUploads = []document.Document{{Title: "Q3 report"}}
	s := newTestServer(t, newFakeSessions(authenticated()), backend)

	rec := get(t, s.Handler(), "/dashboard")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Welcome back, Ada Lovelace", "42", "3.0 MB", "Q3 report"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "secret-token") {
		t.Error("token rendered into the page")
	}
}

func TestProtectedPage_BackendFailures(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:         "expiry redirects to login",
			err:          &session.SessionExpiredError{},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?from=%2Fdashboard",
		},
		{
			name:         "unauthenticated redirects to login",
			err:          &session.ClientError{Status: http.StatusUnauthorized},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?from=%2Fdashboard",
		},
		{
			name:       "server error renders its message",
			err:        &session.ServerError{Status: http.StatusInternalServerError, Message: "database unavailable"},
			wantStatus: http.StatusBadGateway,
			wantBody:   "database unavailable",
		},
		{
			name:       "network failure renders the fallback",
			err:        &session.NetworkError{Op: "GET /api/documents/stats", Cause: errors.New("refused")},
			wantStatus: http.StatusBadGateway,
			wantBody:   "Could not load statistics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, newFakeSessions(authenticated()), &fakeBackend{err: tt.err})

			rec := get(t, s.Handler(), "/dashboard")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

func TestProtectedPage_UsesRecordedRedirect(t *testing.T) {
	sessions := newFakeSessions(authenticated())
	s := newTestServer(t, sessions, &fakeBackend{err: &session.SessionExpiredError{}})
	sessions.snap.Redirect = "/login?from=%2Fdocuments%3Fpage%3D3"

	rec := get(t, s.Handler(), "/documents?page=3")

	if got := rec.Header().Get("Location"); got != "/login?from=%2Fdocuments%3Fpage%3D3" {
		t.Errorf("Location = %q", got)
	}
}

// stubFilter keeps documents whose title contains the expression.
type stubFilter struct{ err error }

func (f stubFilter) Filter(expr string, docs []document.Document) ([]document.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []document.Document
	for _, d := range docs {
		if strings.Contains(d.Title, expr) {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestDocuments(t *testing.T) {
	page := &document.Page{Documents: []document.Document{
		{ID: "d1", Title: "Q3 report", Status: "active", Size: 2048},
		{ID: "d2", Title: "Holiday plan", Status: "active", Size: 10},
	}}

	t.Run("passes the query to the backend", func(t *testing.T) {
		backend := &fakeBackend{page: page}
		s := newTestServer(t, newFakeSessions(authenticated()), backend)

		rec := get(t, s.Handler(), "/documents?search=report&status=active&page=2&limit=10")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		want := document.Query{Search: "report", Status: "active", Page: 2, Limit: 10}
		if len(backend.queries) != 1 || backend.queries[0] != want {
			t.Errorf("queries = %+v, want [%+v]", backend.queries, want)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Q3 report") || !strings.Contains(body, "2.0 KB") {
			t.Error("body missing document row")
		}
	})

	t.Run("where filter narrows the list", func(t *testing.T) {
		s := newTestServer(t, newFakeSessions(authenticated()), &fakeBackend{page: page}, WithDocumentFilter(stubFilter{}))

		rec := get(t, s.Handler(), "/documents?where=Holiday")

		body := rec.Body.String()
		if !strings.Contains(body, "Holiday plan") || strings.Contains(body, "Q3 report") {
			t.Errorf("filter not applied: %s", body)
		}
	})

	t.Run("invalid filter is a bad request", func(t *testing.T) {
		f := stubFilter{err: &session.ValidationError{Field: "where", Message: "invalid filter: undeclared reference"}}
		s := newTestServer(t, newFakeSessions(authenticated()), &fakeBackend{page: page}, WithDocumentFilter(f))

		rec := get(t, s.Handler(), "/documents?where=bogus")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid filter: undeclared reference") {
			t.Error("body missing filter error")
		}
	})

	t.Run("filter without an evaluator", func(t *testing.T) {
		s := newTestServer(t, newFakeSessions(authenticated()), &fakeBackend{page: page})

		rec := get(t, s.Handler(), "/documents?where=x")

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestProfile(t *testing.T) {
	s := newTestServer(t, newFakeSessions(authenticated()), nil)

	rec := get(t, s.Handler(), "/profile")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ada@example.com") {
		t.Error("profile missing email")
	}
}

func TestRouting(t *testing.T) {
	s := newTestServer(t, newFakeSessions(anonymous()), nil)
	h := s.Handler()

	if rec := get(t, h, "/"); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("/ = %d %q, want 303 /dashboard", rec.Code, rec.Header().Get("Location"))
	}
	if rec := get(t, h, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("/nope = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/favicon.ico"); rec.Code != http.StatusNoContent {
		t.Errorf("/favicon.ico = %d, want 204", rec.Code)
	}
	if rec := get(t, h, "/logout"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /logout = %d, want 405", rec.Code)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
