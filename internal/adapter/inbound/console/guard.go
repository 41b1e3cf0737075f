package console

import (
	"net/http"

	"github.com/docdesk/docdesk/internal/domain/route"
	"github.com/docdesk/docdesk/internal/port/inbound"
)

// loadingRefresh is the Refresh header value of the loading placeholder, in seconds.
const loadingRefresh = "1"

// Guard applies the route decision for access to every request it wraps.
// Loading renders a self-refreshing placeholder; redirects use 303 so a
// guarded form POST turns into a GET of the target.
func (s *Server) Guard(access route.Access, sessions inbound.SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := route.Decide(access, sessions.Snapshot(), r.URL.RequestURI())
			s.metrics.GuardDecisions.WithLabelValues(d.Outcome.String()).Inc()

			switch d.Outcome {
			case route.Loading:
				w.Header().Set("Refresh", loadingRefresh)
				w.Header().Set("Cache-Control", "no-store")
				s.render(w, r, http.StatusOK, "loading", pageData{Title: "Loading"})
			case route.RedirectLogin:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			case route.RedirectHome:
				http.Redirect(w, r, homeFor(r), http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// homeFor sends an authenticated visitor of /login?from=... to from, and
// everyone else to the dashboard.
func homeFor(r *http.Request) string {
	if from := r.URL.Query().Get("from"); from != "" {
		return route.SafeReturnPath(from)
	}
	return route.HomePath
}
