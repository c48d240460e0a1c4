package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/callsight/console/internal/api"
	"github.com/callsight/console/internal/telemetry"
)

// DefaultRefreshInterval is how often the background loop renews the
// session. The API issues 15 minute access tokens, so renewing every 14
// keeps them fresh without a visible interruption.
const DefaultRefreshInterval = 14 * time.Minute

// State is the observable authentication state.
//
// The transient refresh window is deliberately not a separate observable
// state: while a background refresh is in flight consumers keep seeing the
// last known Authenticated/Unauthenticated state, and Refreshing() reports
// the in-flight window for anyone who cares.
type State int

const (
	// StateUnknown means no fetch has been attempted yet.
	StateUnknown State = iota
	// StateUnauthenticated means the last fetch failed or a logout completed.
	StateUnauthenticated
	// StateAuthenticated means a current user is cached.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrNotAuthenticated is returned by operations that need a session when
// none is established.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// LoginRequest carries the credentials for /auth/login. Validated locally
// before any network call is made.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userEnvelope struct {
	User User `json:"user"`
}

// Manager owns the authenticated-user state machine: the single cached
// CurrentUser slot, the login/logout/me operations, and the background
// refresh loop. It is the only writer of the cached user.
type Manager struct {
	client          *api.Client
	refreshInterval time.Duration
	validate        *validator.Validate

	mu         sync.RWMutex
	state      State
	user       *User
	refreshing bool

	// generation is bumped on every login and logout. A refresh result
	// carrying a stale generation is discarded instead of overwriting a
	// newer session.
	generation uint64

	refreshCancel context.CancelFunc
	refreshDone   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshInterval overrides the background refresh period.
func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		m.refreshInterval = interval
	}
}

// NewManager creates a session manager on top of the gateway client.
func NewManager(client *api.Client, opts ...Option) *Manager {
	m := &Manager{
		client:          client,
		refreshInterval: DefaultRefreshInterval,
		validate:        validator.New(),
		state:           StateUnknown,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// State returns the observable authentication state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentUser returns the cached user, or nil when unauthenticated. The
// returned value is shared and must be treated as read-only.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Refreshing reports whether a background refresh is currently in flight.
func (m *Manager) Refreshing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshing
}

// FetchUser requests the current-user snapshot from /auth/me. On success
// the user is cached and the state becomes authenticated; on any failure
// the state becomes unauthenticated and nil is returned. Fetch failures
// are never surfaced as errors: the absence of a user is itself the
// signal, and the login page is simply reachable.
func (m *Manager) FetchUser(ctx context.Context) *User {
	var user User
	if err := m.client.Get(ctx, "/auth/me", &user); err != nil {
		log.Debug().Err(err).Msg("current user fetch failed")

		m.mu.Lock()
		defer m.mu.Unlock()
		m.state = StateUnauthenticated
		m.user = nil
		m.stopRefreshLocked()
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = &user
	m.state = StateAuthenticated
	m.startRefreshLocked()
	return m.user
}

// Login authenticates against /auth/login. On success the returned user
// becomes the cached current user atomically with the state change; no
// separate me fetch happens. Failures are returned verbatim for the
// caller to display.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	req := LoginRequest{Email: email, Password: password}
	if err := m.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("session: invalid login request: %w", err)
	}

	telemetry.GetMetrics().LoginAttemptsTotal.Add(ctx, 1)

	var envelope userEnvelope
	if err := m.client.Post(ctx, "/auth/login", req, &envelope); err != nil {
		telemetry.GetMetrics().LoginFailuresTotal.Add(ctx, 1)

		m.mu.Lock()
		m.generation++
		m.state = StateUnauthenticated
		m.user = nil
		m.stopRefreshLocked()
		m.mu.Unlock()

		return nil, err
	}

	m.mu.Lock()
	m.generation++
	m.user = &envelope.User
	m.state = StateAuthenticated
	// Restart rather than reuse any running loop: the loop pins the
	// generation it was started with, and this login began a new one.
	m.stopRefreshLocked()
	m.startRefreshLocked()
	m.mu.Unlock()

	log.Info().Str("user_id", envelope.User.ID).Msg("login succeeded")

	return &envelope.User, nil
}

// Logout tells the server to end the session and clears the local cache.
// The cache is cleared no matter what the server answers, so the client
// never holds a stale authenticated view past an explicit logout. Only
// transport failures propagate; a non-2xx response is logged and treated
// as a completed logout.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.client.Post(ctx, "/auth/logout", nil, nil)

	m.mu.Lock()
	m.generation++
	m.user = nil
	m.state = StateUnauthenticated
	m.stopRefreshLocked()
	m.mu.Unlock()

	m.client.ClearCredentials()
	telemetry.GetMetrics().LogoutTotal.Add(ctx, 1)

	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			log.Warn().Int("status", apiErr.Status).Msg("server rejected logout, local session cleared anyway")
			return nil
		}
		return err
	}

	log.Info().Msg("logout completed")
	return nil
}

// Close tears the manager down, stopping the refresh loop if one is
// running. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRefreshLocked()
}

// startRefreshLocked starts the background refresh loop for the current
// session generation. A second call while a loop is running is a no-op,
// so two timers can never tick concurrently. Callers must hold mu.
func (m *Manager) startRefreshLocked() {
	if m.refreshCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.refreshCancel = cancel
	m.refreshDone = done

	go m.refreshLoop(ctx, m.generation, done)
}

// stopRefreshLocked cancels the refresh loop. The loop's ticker stops on
// cancellation, and an in-flight tick from the old generation is discarded
// by the generation check rather than applied. Callers must hold mu.
func (m *Manager) stopRefreshLocked() {
	if m.refreshCancel == nil {
		return
	}

	m.refreshCancel()
	m.refreshCancel = nil
	m.refreshDone = nil
}

func (m *Manager) refreshLoop(ctx context.Context, generation uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	log.Debug().Dur("interval", m.refreshInterval).Msg("session refresh loop started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("session refresh loop stopped")
			return
		case <-ticker.C:
			m.refresh(ctx, generation)
		}
	}
}

// refresh performs one silent renewal tick. Failures are swallowed: the
// cached user stays in place and the next organic me fetch will surface a
// genuinely lapsed session. A result is applied only when the generation
// still matches and the session is still authenticated, so a slow response
// can neither clobber a newer login nor repopulate a lapsed session.
func (m *Manager) refresh(ctx context.Context, generation uint64) {
	telemetry.GetMetrics().RefreshTotal.Add(ctx, 1)

	m.mu.Lock()
	if m.generation != generation || m.state != StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.refreshing = true
	m.mu.Unlock()

	var envelope userEnvelope
	err := m.client.Post(ctx, "/auth/refresh", nil, &envelope)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshing = false

	if err != nil {
		telemetry.GetMetrics().RefreshFailuresTotal.Add(ctx, 1)
		event := log.Warn().Err(err)
		if claims := m.client.AccessClaims(); claims != nil {
			event = event.Bool("token_expired", claims.Expired())
		}
		event.Msg("session refresh failed, keeping cached user")
		return
	}

	if m.generation != generation || m.state != StateAuthenticated {
		log.Debug().Msg("discarding stale session refresh result")
		return
	}

	m.user = &envelope.User
	log.Debug().Str("user_id", envelope.User.ID).Msg("session refreshed")
}
