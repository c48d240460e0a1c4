// Package console serves the dashboard shell: the login flow, the session
// snapshot and call-record endpoints the pages poll, and the guarded page
// routes themselves. Charts and styling live elsewhere; everything here
// hands already-fetched data to whatever renders it.
package console

import (
	"net/http"
	"strings"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/callsight/console/internal/api"
	"github.com/callsight/console/internal/calls"
	"github.com/callsight/console/internal/guard"
	httpmiddleware "github.com/callsight/console/internal/http"
	"github.com/callsight/console/internal/logger"
	"github.com/callsight/console/internal/session"
)

// protectedPages are the dashboard navigations the console answers. They
// mirror the guard's protected prefixes.
var protectedPages = []string{
	"/dashboard",
	"/calls",
	"/live",
	"/team",
	"/settings",
}

// Server wires the session manager and calls client behind the console's
// HTTP surface.
type Server struct {
	apiClient   *api.Client
	sessions    *session.Manager
	calls       *calls.Client
	corsOrigins []string
	log         zerolog.Logger
}

// NewServer creates a console server.
func NewServer(apiClient *api.Client, sessions *session.Manager, callsClient *calls.Client, corsOrigins []string, log zerolog.Logger) *Server {
	return &Server{
		apiClient:   apiClient,
		sessions:    sessions,
		calls:       callsClient,
		corsOrigins: corsOrigins,
		log:         log,
	}
}

// Handler builds the console's full middleware stack: client IP capture
// and request logging on the outside, gzip, then CORS for API routes and
// CSRF for HTML routes, then the route guard ahead of every handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", s.loginPage)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /api/calls", s.handleCalls)
	mux.HandleFunc("GET /api/calls/active", s.handleActiveCalls)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	for _, page := range protectedPages {
		mux.HandleFunc("GET "+page+"/", s.pageShell(page))
		mux.HandleFunc("GET "+page, s.pageShell(page))
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, guard.DefaultLandingPath, http.StatusFound)
	})

	// The guard runs ahead of every handler so no page logic executes for
	// a navigation that is about to be redirected.
	guarded := guard.Middleware(s.apiClient)(mux)

	// API routes get CORS, HTML routes get CSRF.
	protection := csrf.New()
	split := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			withCORS(s.corsOrigins, guarded).ServeHTTP(w, r)
		} else {
			protection.Handler(guarded).ServeHTTP(w, r)
		}
	})

	clientIP := httpmiddleware.ClientIPMiddleware()
	return clientIP(logger.Requests(s.log)(gzhttp.GzipHandler(split)))
}

// isAPIRoute returns true if the path is an API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// withCORS adds CORS support to the console's API routes.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}
