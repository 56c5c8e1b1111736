package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mdps/dashboard-client/internal/apperr"
	"github.com/mdps/dashboard-client/internal/api"
	"github.com/mdps/dashboard-client/internal/keychain"
)

// State is the session lifecycle position. There is no partially
// authenticated state: any inconsistency collapses to StateAnonymous.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// EndReason explains why a session ended; the view layer turns it into a
// navigation target.
type EndReason string

const (
	EndLogout    EndReason = "logout"
	EndExpired   EndReason = "expired"
	EndSuspended EndReason = "suspended"
)

// expirySkew refreshes tokens slightly before their exp claim so a request
// sent at the boundary doesn't burn a 401.
const expirySkew = 30 * time.Second

// Manager is the single source of truth for the token pair and the resolved
// user. The gateway reads tokens through the Authorizer interface but only
// the manager writes them.
type Manager struct {
	client *api.Client
	gw     *api.Gateway
	vault  keychain.Keychain
	log    zerolog.Logger

	validate singleflight.Group
	refresh  singleflight.Group

	mu           sync.RWMutex
	state        State
	user         *User
	accessToken  string
	refreshToken string
	onEnd        func(EndReason)
}

// NewManager restores any persisted token pair from the vault. The restored
// session is unvalidated until EnsureAuthenticated or RefreshUserData runs.
func NewManager(client *api.Client, vault keychain.Keychain, log zerolog.Logger) *Manager {
	m := &Manager{
		client: client,
		vault:  vault,
		log:    log,
		state:  StateAnonymous,
	}
	m.gw = api.NewGateway(client, m, log)

	access, refresh, err := keychain.LoadTokens(vault)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore tokens from keychain")
		return m
	}
	m.accessToken = access
	m.refreshToken = refresh
	return m
}

// Gateway exposes the authenticated request pipeline bound to this session
func (m *Manager) Gateway() *api.Gateway { return m.gw }

// SetSessionEndHandler registers the callback invoked when an authenticated
// session ends. It is called synchronously, after session state is cleared.
func (m *Manager) SetSessionEndHandler(fn func(EndReason)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = fn
}

// State returns the current lifecycle position
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentUser returns the resolved identity, or nil when anonymous
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// CurrentUserID implements the chat synchronizer's identity source. It is
// read live on every call so a session change never mislabels old messages.
func (m *Manager) CurrentUserID() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return 0, false
	}
	return m.user.ID, true
}

// Login exchanges credentials for a token pair, then resolves the user. A
// successful token exchange does not imply a usable session: a suspended
// account tears everything down and reports failure.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	m.mu.Lock()
	m.state = StateAuthenticating
	m.mu.Unlock()

	tok, err := m.client.ExchangeToken(ctx, email, password)
	if err != nil {
		m.clear("")
		return nil, err
	}

	m.mu.Lock()
	m.accessToken = tok.Access
	m.refreshToken = tok.Refresh
	m.mu.Unlock()
	if err := keychain.SaveTokens(m.vault, tok.Access, tok.Refresh); err != nil {
		m.log.Warn().Err(err).Msg("failed to persist tokens")
	}

	user, err := m.RefreshUserData(ctx)
	if err != nil {
		return nil, err
	}

	m.log.Info().Str("user", user.DisplayName()).Str("role", string(user.Role())).Msg("login successful")
	return user, nil
}

// RefreshUserData fetches the current-user profile and marks the session
// authenticated. Fails closed: any failure clears the session entirely
// rather than leaving stale partial state.
func (m *Manager) RefreshUserData(ctx context.Context) (*User, error) {
	payload, err := m.gw.CurrentUser(ctx)
	if err != nil {
		// The gateway may already have invalidated on 401/suspension;
		// clearing again is idempotent and covers plain network failures.
		if apperr.CodeOf(err) == apperr.CodeAccountSuspended {
			m.clear(EndSuspended)
			return nil, apperr.ErrAccountSuspended
		}
		m.clear(EndExpired)
		return nil, err
	}

	user := userFromPayload(payload)
	if user.Status == StatusSuspended {
		m.clear(EndSuspended)
		return nil, apperr.ErrAccountSuspended
	}

	m.mu.Lock()
	m.user = user
	m.state = StateAuthenticated
	m.mu.Unlock()
	return user, nil
}

// EnsureAuthenticated is the idempotent route-guard check. Concurrent
// callers with no cached user coalesce into a single validation request.
func (m *Manager) EnsureAuthenticated(ctx context.Context) bool {
	m.mu.RLock()
	access := m.accessToken
	user := m.user
	m.mu.RUnlock()

	if access == "" {
		m.clear("")
		return false
	}
	expired := tokenExpired(access)
	if user != nil {
		if user.Status == StatusSuspended {
			m.clear(EndSuspended)
			return false
		}
		if !expired {
			return true
		}
	}

	_, err, _ := m.validate.Do("validate", func() (any, error) {
		if expired {
			// The exp claim already fired; refresh up front rather than
			// sending a request guaranteed to 401.
			if _, err := m.RefreshAccess(ctx); err != nil {
				m.clear(EndExpired)
				return nil, err
			}
		}
		return m.RefreshUserData(ctx)
	})
	return err == nil
}

// HasRole is a pure check over the current user's authorization flags.
// Admin requires is_superuser or role == "admin"; staff is satisfied by
// is_staff or by admin.
func (m *Manager) HasRole(required Role) bool {
	m.mu.RLock()
	user := m.user
	m.mu.RUnlock()

	switch required {
	case RoleAdmin:
		return user != nil && user.isAdmin()
	case RoleStaff:
		return user != nil && (user.IsStaff || user.isAdmin())
	default:
		return true
	}
}

// Logout clears both tokens and user state unconditionally. Never fails.
func (m *Manager) Logout() {
	m.clear(EndLogout)
	m.log.Info().Msg("logged out")
}

// AccessToken implements api.Authorizer
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// RefreshAccess implements api.Authorizer. Concurrent 401s coalesce into a
// single refresh call.
func (m *Manager) RefreshAccess(ctx context.Context) (string, error) {
	token, err, _ := m.refresh.Do("refresh", func() (any, error) {
		m.mu.RLock()
		refresh := m.refreshToken
		m.mu.RUnlock()
		if refresh == "" {
			return "", apperr.New(apperr.CodeRefreshFailed, "no refresh token available")
		}

		access, err := m.client.RefreshAccessToken(ctx, refresh)
		if err != nil {
			return "", err
		}

		m.mu.Lock()
		m.accessToken = access
		m.mu.Unlock()
		if err := m.vault.Set(keychain.KeyAccessToken, access); err != nil {
			m.log.Warn().Err(err).Msg("failed to persist refreshed access token")
		}
		return access, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Invalidate implements api.Authorizer
func (m *Manager) Invalidate(reason string) {
	switch reason {
	case api.ReasonSuspended:
		m.clear(EndSuspended)
	default:
		m.clear(EndExpired)
	}
}

// clear collapses the session to anonymous. reason is forwarded to the
// session-end handler when an authenticated session actually ended; an empty
// reason suppresses notification (e.g. a failed login attempt).
func (m *Manager) clear(reason EndReason) {
	m.mu.Lock()
	wasAuthenticated := m.state == StateAuthenticated
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	m.state = StateAnonymous
	handler := m.onEnd
	m.mu.Unlock()

	if err := keychain.ClearTokens(m.vault); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear stored tokens")
	}

	if wasAuthenticated && reason != "" && handler != nil {
		handler(reason)
	}
}

// tokenExpired inspects the unverified exp claim of a JWT access token.
// Opaque or claimless tokens are treated as live; the gateway's 401 path
// covers them.
func tokenExpired(raw string) bool {
	if strings.Count(raw, ".") != 2 {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < expirySkew
}
