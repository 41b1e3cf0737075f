// Package route decides how a guarded view renders for the current session.
package route

import (
	"net/url"
	"strings"

	"github.com/docdesk/docdesk/internal/domain/session"
)

// Paths the guard redirects to.
const (
	LoginPath = "/login"
	HomePath  = "/dashboard"
)

// Outcome is what the view should do.
type Outcome int

const (
	// Render shows the wrapped content.
	Render Outcome = iota
	// Loading shows a transient placeholder while the session settles.
	Loading
	// RedirectLogin sends an anonymous visitor of a protected view to login.
	RedirectLogin
	// RedirectHome sends an authenticated visitor of a public-only view home.
	RedirectHome
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Access declares whether a view requires authentication.
type Access struct {
	RequireAuth bool
}

var (
	// Protected views render only for authenticated sessions.
	Protected = Access{RequireAuth: true}
	// PublicOnly views, such as login and register, render only for anonymous sessions.
	PublicOnly = Access{RequireAuth: false}
)

// Decision is the guard's verdict. Location is set for redirects.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Decide returns the outcome for a view at location under access rules a.
// It holds no state and performs no redirect itself.
func Decide(a Access, snap session.Snapshot, location string) Decision {
	if snap.IsLoading || snap.State == session.StateLoading {
		return Decision{Outcome: Loading}
	}
	switch {
	case a.RequireAuth && !snap.IsAuthenticated:
		return Decision{Outcome: RedirectLogin, Location: LoginLocation(location)}
	case !a.RequireAuth && snap.IsAuthenticated:
		return Decision{Outcome: RedirectHome, Location: HomePath}
	}
	return Decision{Outcome: Render}
}

// LoginLocation builds the login URL that returns the user to from afterwards.
func LoginLocation(from string) string {
	if from == "" {
		return LoginPath
	}
	return LoginPath + "?from=" + url.QueryEscape(from)
}

// SafeReturnPath returns from when it is a local absolute path, and HomePath otherwise.
// This keeps the post-login redirect on this host.
func SafeReturnPath(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return HomePath
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return HomePath
	}
	if u.Path == LoginPath {
		return HomePath
	}
	return from
}
