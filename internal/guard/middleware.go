package guard

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/callsight/console/internal/telemetry"
)

// CredentialSource reports whether an access credential is currently held.
// The gateway client's cookie jar is the production implementation.
type CredentialSource interface {
	HasAccessToken() bool
}

// Middleware applies the route guard to every request before any handler
// logic runs.
func Middleware(creds CredentialSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Decide(r.URL.Path, creds.HasAccessToken())

			if decision.Action == ActionRedirect {
				telemetry.GetMetrics().GuardRedirectsTotal.Add(r.Context(), 1)
				log.Debug().
					Str("path", r.URL.Path).
					Str("location", decision.Location).
					Msg("route guard redirect")
				http.Redirect(w, r, decision.Location, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
