package console

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/callsight/console/internal/api"
	"github.com/callsight/console/internal/calls"
	"github.com/callsight/console/internal/guard"
	"github.com/callsight/console/internal/session"
)

var loginTemplate = template.Must(template.New("login").Parse(`<!doctype html>
<html>
<head><title>CallSight - Sign in</title></head>
<body>
<form method="post" action="/api/auth/login">
  <input type="hidden" name="from" value="{{.From}}">
  <label>Email <input type="email" name="email" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
</body>
</html>
`))

var shellTemplate = template.Must(template.New("shell").Parse(`<!doctype html>
<html>
<head><title>CallSight - {{.Title}}</title></head>
<body data-page="{{.Page}}" data-user="{{.Email}}"></body>
</html>
`))

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := loginTemplate.Execute(w, map[string]string{
		"From": safeReturnPath(r.URL.Query().Get(guard.FromParam)),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to render login page")
	}
}

type loginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	From     string `json:"-"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed login request")
		return
	}

	user, err := s.sessions.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}

	target := safeReturnPath(creds.From)
	if target == "" {
		target = guard.DefaultLandingPath
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "logout failed: "+err.Error())
		return
	}

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":      s.sessions.State().String(),
		"user":       s.sessions.CurrentUser(),
		"refreshing": s.sessions.Refreshing(),
	})
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	s.serveCalls(w, r, s.calls.CompanyCalls)
}

func (s *Server) handleActiveCalls(w http.ResponseWriter, r *http.Request) {
	s.serveCalls(w, r, s.calls.ActiveCompanyCalls)
}

func (s *Server) serveCalls(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) ([]calls.CallRecord, error)) {
	records, err := s.companyRecords(r.Context(), fetch)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, "not authenticated")
		case errors.Is(err, calls.ErrMissingCompany):
			writeError(w, http.StatusNotFound, "no company assigned")
		case api.StatusOf(err) != 0:
			var apiErr *api.Error
			errors.As(err, &apiErr)
			writeError(w, apiErr.Status, apiErr.Message)
		default:
			writeError(w, http.StatusBadGateway, "upstream unavailable")
		}
		return
	}

	if records == nil {
		records = []calls.CallRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// companyRecords resolves the current user and fetches their company's
// call records. No established session is an error here, not a state to
// guess at.
func (s *Server) companyRecords(ctx context.Context, fetch func(context.Context, string) ([]calls.CallRecord, error)) ([]calls.CallRecord, error) {
	user := s.currentOrFetch(ctx)
	if user == nil {
		return nil, session.ErrNotAuthenticated
	}
	return fetch(ctx, user.CompanyID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pageShell answers a protected page navigation. The guard has already
// checked credential presence; what remains is the organic me check that
// surfaces a genuinely lapsed session as a redirect back to login.
func (s *Server) pageShell(page string) http.HandlerFunc {
	title := strings.TrimPrefix(page, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		user := s.currentOrFetch(r.Context())
		if user == nil {
			query := url.Values{guard.FromParam: {r.URL.Path}}
			http.Redirect(w, r, guard.LoginPath+"?"+query.Encode(), http.StatusFound)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		err := shellTemplate.Execute(w, map[string]string{
			"Title": title,
			"Page":  title,
			"Email": user.Email,
		})
		if err != nil {
			log.Error().Err(err).Str("page", page).Msg("failed to render page shell")
		}
	}
}

// currentOrFetch returns the cached user, fetching the snapshot once when
// no fetch has happened yet this session.
func (s *Server) currentOrFetch(ctx context.Context) *session.User {
	if user := s.sessions.CurrentUser(); user != nil {
		return user
	}
	if s.sessions.State() != session.StateUnknown {
		return nil
	}
	return s.sessions.FetchUser(ctx)
}

func readCredentials(r *http.Request) (loginCredentials, error) {
	var creds loginCredentials

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return creds, err
		}
		creds.From = r.URL.Query().Get(guard.FromParam)
		return creds, nil
	}

	if err := r.ParseForm(); err != nil {
		return creds, err
	}

	creds.Email = r.PostFormValue("email")
	creds.Password = r.PostFormValue("password")
	creds.From = r.PostFormValue(guard.FromParam)
	return creds, nil
}

func writeLoginError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		writeError(w, http.StatusUnprocessableEntity, "invalid email or password format")
		return
	}

	writeError(w, http.StatusBadGateway, "authentication service unavailable")
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// safeReturnPath only honors local absolute paths, so the login flow can
// never be used as an open redirect.
func safeReturnPath(from string) string {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return ""
	}
	return from
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
