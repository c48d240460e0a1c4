package console

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callsight/console/internal/api"
	"github.com/callsight/console/internal/calls"
	"github.com/callsight/console/internal/session"
)

// newTestConsole spins up a fake upstream API and a console wired to it.
func newTestConsole(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	upstream := http.NewServeMux()

	upstream.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Password != "correct-horse" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid credentials"}`))
			return
		}

		http.SetCookie(w, &http.Cookie{Name: api.AccessTokenCookie, Value: "access", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: api.RefreshTokenCookie, Value: "refresh", Path: "/", HttpOnly: true})

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"user-1","email":"` + req.Email + `","company_id":"co-7"}}`))
	})

	upstream.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(api.AccessTokenCookie); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"not authenticated"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user-1","email":"alice@example.com","company_id":"co-7"}`))
	})

	upstream.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	upstream.HandleFunc("GET /calls/company/co-7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"call-1","status":"completed"}]`))
	})

	upstream.HandleFunc("GET /calls/company/co-7/active", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	upstreamServer := httptest.NewServer(upstream)
	t.Cleanup(upstreamServer.Close)

	apiClient, err := api.New(upstreamServer.URL)
	require.NoError(t, err)

	sessions := session.NewManager(apiClient)
	t.Cleanup(sessions.Close)

	server := NewServer(apiClient, sessions, calls.NewClient(apiClient), nil, zerolog.Nop())

	consoleServer := httptest.NewServer(server.Handler())
	t.Cleanup(consoleServer.Close)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return consoleServer, client
}

func login(t *testing.T, consoleURL string, client *http.Client) {
	t.Helper()

	form := url.Values{"email": {"alice@example.com"}, "password": {"correct-horse"}}
	resp, err := client.Post(consoleURL+"/api/auth/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestAnonymousDashboardRedirectsToLogin(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	resp, err := client.Get(consoleServer.URL + "/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?from=%2Fdashboard", resp.Header.Get("Location"))
}

func TestLoginPageReachableWhenAnonymous(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	resp, err := client.Get(consoleServer.URL + "/login?from=%2Fcalls")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestLoginRedirectsAndAuthenticates(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	login(t, consoleServer.URL, client)

	// The credential is now held, so the dashboard renders and the login
	// page bounces straight back to it.
	resp, err := client.Get(consoleServer.URL + "/dashboard")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(consoleServer.URL + "/login")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestLoginHonorsFromTarget(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	form := url.Values{
		"email":    {"alice@example.com"},
		"password": {"correct-horse"},
		"from":     {"/calls"},
	}
	resp, err := client.Post(consoleServer.URL+"/api/auth/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/calls", resp.Header.Get("Location"))
}

func TestLoginRejectsExternalFromTarget(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	form := url.Values{
		"email":    {"alice@example.com"},
		"password": {"correct-horse"},
		"from":     {"//evil.example.com/phish"},
	}
	resp, err := client.Post(consoleServer.URL+"/api/auth/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestLoginFailureSurfacesDetail(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	body := strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`)
	req, err := http.NewRequest(http.MethodPost, consoleServer.URL+"/api/auth/login", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "invalid credentials", payload["detail"])
}

func TestSessionSnapshot(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	resp, err := client.Get(consoleServer.URL + "/api/session")
	require.NoError(t, err)
	var snapshot struct {
		State string           `json:"state"`
		User  *json.RawMessage `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "unknown", snapshot.State)
	assert.Nil(t, snapshot.User)

	login(t, consoleServer.URL, client)

	resp, err = client.Get(consoleServer.URL + "/api/session")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "authenticated", snapshot.State)
	assert.NotNil(t, snapshot.User)
}

func TestCallsEndpoints(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	// Before any session exists the calls endpoints refuse to guess.
	resp, err := client.Get(consoleServer.URL + "/api/calls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var failure map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failure))
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "not authenticated", failure["detail"])

	login(t, consoleServer.URL, client)

	resp, err = client.Get(consoleServer.URL + "/api/calls")
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	resp.Body.Close() //nolint:errcheck
	require.Len(t, records, 1)
	assert.Equal(t, "call-1", records[0]["id"])

	resp, err = client.Get(consoleServer.URL + "/api/calls/active")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	resp.Body.Close() //nolint:errcheck
	assert.Empty(t, records)
}

func TestLogoutClearsSessionAndGuardKicksIn(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	login(t, consoleServer.URL, client)

	req, err := http.NewRequest(http.MethodPost, consoleServer.URL+"/api/auth/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.Get(consoleServer.URL + "/dashboard")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?from=%2Fdashboard", resp.Header.Get("Location"))
}

func TestRootRedirectsToDashboard(t *testing.T) {
	consoleServer, client := newTestConsole(t)

	login(t, consoleServer.URL, client)

	resp, err := client.Get(consoleServer.URL + "/")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}
