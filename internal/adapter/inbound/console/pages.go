package console

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/document"
	"github.com/docdesk/docdesk/internal/domain/ratelimit"
	"github.com/docdesk/docdesk/internal/domain/route"
	"github.com/docdesk/docdesk/internal/domain/session"
	"github.com/docdesk/docdesk/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{"loading", "login", "register", "dashboard", "documents", "profile"}

// formValues echoes submitted form fields back into a re-rendered form.
// Passwords are never echoed.
type formValues struct {
	Email        string
	FirstName    string
	LastName     string
	Country      string
	AgreeToTerms bool
}

// pageData is what every template receives.
type pageData struct {
	Title     string
	User      *session.User
	Error     string
	From      string
	Form      formValues
	Stats     *document.Stats
	Documents []document.Document
	Query     document.Query
	Where     string
}

var templateFuncs = template.FuncMap{
	"humanSize": humanSize,
	"date": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed.Format("2006-01-02")
			}
			return t
		}
		return ""
	},
}

// loadTemplates parses one template set per page, each sharing the layout.
func loadTemplates() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if data.User == nil {
		data.User = s.sessions.Snapshot().User
	}
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		LoggerFromContext(r.Context()).Error("failed to render page", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", pageData{
		Title: "Log in",
		From:  r.URL.Query().Get("from"),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	creds := auth.Credentials{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	from := r.PostForm.Get("from")

	if msg, ok := s.throttle(w, r, "login"); !ok {
		s.render(w, r, http.StatusTooManyRequests, "login", pageData{
			Title: "Log in",
			Error: msg,
			From:  from,
			Form:  formValues{Email: creds.Email},
		})
		return
	}

	if err := s.sessions.Login(r.Context(), creds); err != nil {
		status, result := formFailure(err, http.StatusUnauthorized)
		s.metrics.FormSubmissions.WithLabelValues("login", result).Inc()
		s.render(w, r, status, "login", pageData{
			Title: "Log in",
			Error: session.Message(err, service.MsgLoginFailed),
			From:  from,
			Form:  formValues{Email: creds.Email},
		})
		return
	}
	s.metrics.FormSubmissions.WithLabelValues("login", "ok").Inc()
	http.Redirect(w, r, route.SafeReturnPath(from), http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", pageData{Title: "Sign up"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	agree, _ := strconv.ParseBool(r.PostForm.Get("agreeToTerms"))
	reg := auth.Registration{
		FirstName:       r.PostForm.Get("firstName"),
		LastName:        r.PostForm.Get("lastName"),
		Email:           r.PostForm.Get("email"),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirmPassword"),
		Country:         r.PostForm.Get("country"),
		AgreeToTerms:    agree,
	}
	form := formValues{
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Country:      reg.Country,
		AgreeToTerms: reg.AgreeToTerms,
	}

	if msg, ok := s.throttle(w, r, "register"); !ok {
		s.render(w, r, http.StatusTooManyRequests, "register", pageData{
			Title: "Sign up",
			Error: msg,
			Form:  form,
		})
		return
	}

	if err := s.sessions.Register(r.Context(), reg); err != nil {
		status, result := formFailure(err, http.StatusBadRequest)
		s.metrics.FormSubmissions.WithLabelValues("register", result).Inc()
		s.render(w, r, status, "register", pageData{
			Title: "Sign up",
			Error: session.Message(err, service.MsgRegistrationFailed),
			Form:  form,
		})
		return
	}
	s.metrics.FormSubmissions.WithLabelValues("register", "ok").Inc()
	http.Redirect(w, r, route.LoginPath, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(r.Context())
	http.Redirect(w, r, route.LoginPath, http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.DocumentStats(r.Context())
	if err != nil {
		s.pageFailure(w, r, "dashboard", pageData{Title: "Dashboard"}, err, "Could not load statistics")
		return
	}
	s.render(w, r, http.StatusOK, "dashboard", pageData{Title: "Dashboard", Stats: stats})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := document.Query{
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	query.Page, _ = strconv.Atoi(q.Get("page"))
	query.Limit, _ = strconv.Atoi(q.Get("limit"))
	where := q.Get("where")
	data := pageData{Title: "Documents", Query: query, Where: where}

	page, err := s.backend.ListDocuments(r.Context(), query)
	if err != nil {
		s.pageFailure(w, r, "documents", data, err, "Could not load documents")
		return
	}
	docs := page.Documents
	if where != "" {
		if s.filter == nil {
			data.Error = "Filter expressions are not available"
			s.render(w, r, http.StatusBadRequest, "documents", data)
			return
		}
		docs, err = s.filter.Filter(where, docs)
		if err != nil {
			data.Error = session.Message(err, "Invalid filter")
			s.render(w, r, http.StatusBadRequest, "documents", data)
			return
		}
	}
	data.Documents = docs
	s.render(w, r, http.StatusOK, "documents", data)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "profile", pageData{Title: "Profile"})
}

// pageFailure renders a protected page whose backend call failed. An expiry
// during the call has already ended the session, so the visitor is sent to
// login with a way back.
func (s *Server) pageFailure(w http.ResponseWriter, r *http.Request, name string, data pageData, err error, fallback string) {
	if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrUnauthenticated) {
		loc := s.sessions.Snapshot().Redirect
		if loc == "" {
			loc = route.LoginLocation(r.URL.RequestURI())
		}
		http.Redirect(w, r, loc, http.StatusSeeOther)
		return
	}
	LoggerFromContext(r.Context()).Warn("backend call failed", "page", name, "error", err)
	data.Error = session.Message(err, fallback)
	s.render(w, r, http.StatusBadGateway, name, data)
}

// throttle spends one attempt of the client's budget for form. When the
// budget is exhausted it sets Retry-After and returns the message to show.
// A limiter failure lets the attempt through.
func (s *Server) throttle(w http.ResponseWriter, r *http.Request, form string) (string, bool) {
	if s.limiter == nil {
		return "", true
	}
	key := ratelimit.FormatKey(form, ratelimit.KeyTypeIP, clientIP(r))
	res, err := s.limiter.Allow(r.Context(), key, ratelimit.LoginAttempts)
	if err != nil {
		LoggerFromContext(r.Context()).Warn("rate limiter failed", "form", form, "error", err)
		return "", true
	}
	if res.Allowed {
		return "", true
	}

	wait := int(math.Ceil(res.RetryAfter.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(wait))
	s.metrics.FormSubmissions.WithLabelValues(form, "throttled").Inc()
	LoggerFromContext(r.Context()).Warn("form submission throttled", "form", form, "key", key, "retry_after", res.RetryAfter)
	return fmt.Sprintf("Too many attempts. Try again in %d seconds.", wait), false
}

// clientIP is the host part of the connection's remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// formFailure maps a form submission error to a response status and a metric
// result label. Local validation failures are 422; backend rejections use
// rejected.
func formFailure(err error, rejected int) (int, string) {
	if errors.Is(err, session.ErrValidation) {
		return http.StatusUnprocessableEntity, "invalid"
	}
	return rejected, "rejected"
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
