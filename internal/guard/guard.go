// Package guard decides, before any page logic runs, whether a navigation
// may continue or must be redirected. It is a coarse perimeter check on
// credential presence only; expiry and authorization are enforced
// server-side on every API call.
package guard

import (
	"net/url"
	"strings"
)

const (
	// LoginPath is where unauthenticated navigations to protected pages land.
	LoginPath = "/login"

	// DefaultLandingPath is where authenticated users land when they hit a
	// public-only page such as the login form.
	DefaultLandingPath = "/dashboard"

	// FromParam carries the originally requested path through the login
	// flow so it can return the user to their destination.
	FromParam = "from"
)

// publicPaths are reachable without a credential, and pointless to show to
// an already-authenticated user.
var publicPaths = []string{
	LoginPath,
	"/api/auth/login",
	"/api/auth/refresh",
}

// protectedPrefixes cover every page that requires an authenticated session.
var protectedPrefixes = []string{
	"/dashboard",
	"/calls",
	"/live",
	"/team",
	"/settings",
}

// Action says what to do with a navigation.
type Action int

const (
	// ActionContinue lets the navigation proceed unmodified.
	ActionContinue Action = iota
	// ActionRedirect sends the client to Decision.Location instead.
	ActionRedirect
)

// Decision is the outcome of evaluating one navigation. The guard never
// errors; a decision is all it produces.
type Decision struct {
	Action   Action
	Location string
}

// Continue is the pass-through decision.
var Continue = Decision{Action: ActionContinue}

// RedirectTo builds a redirect decision.
func RedirectTo(location string) Decision {
	return Decision{Action: ActionRedirect, Location: location}
}

// Decide evaluates a navigation to path given whether an access credential
// is currently held. Rules, in precedence order: a public path with a
// credential redirects to the dashboard, a protected path without one
// redirects to login carrying the original destination, everything else
// continues.
func Decide(path string, hasCredential bool) Decision {
	if isPublicPath(path) && hasCredential {
		return RedirectTo(DefaultLandingPath)
	}

	if isProtectedPath(path) && !hasCredential {
		query := url.Values{FromParam: {path}}
		return RedirectTo(LoginPath + "?" + query.Encode())
	}

	return Continue
}

func isPublicPath(path string) bool {
	return hasAnyPrefix(path, publicPaths)
}

func isProtectedPath(path string) bool {
	return hasAnyPrefix(path, protectedPrefixes)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
