// Package session owns the current-user state for the lifetime of the
// process. All mutation goes through the manager so the session
// invariant holds: UserID and Token are set together or cleared
// together, never independently.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pfacil/pfacil/pkg/api"
	"github.com/pfacil/pfacil/pkg/identity"
	"github.com/pfacil/pfacil/pkg/models"
)

// Backend is the slice of the API client the session layer needs for
// backend reconciliation.
type Backend interface {
	Register(ctx context.Context, fullName, email, password, googleID string) (*models.User, error)
	Login(ctx context.Context, email, password, googleID string) error
	CheckUser(ctx context.Context, email, googleID string) (*api.CheckUserResult, error)
}

// TokenStore persists the bearer credential.
type TokenStore interface {
	Save(token string) error
	Clear() error
}

// ErrMissingFields is the local validation failure; no network call is
// issued when it fires.
var ErrMissingFields = errors.New("Todos los campos son obligatorios")

// Session is the authenticated state. Both fields set, or both empty.
type Session struct {
	UserID string
	Token  string
}

func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Manager composes the identity provider and the backend. Consumers
// observe state through Subscribe; until the provider has fired once the
// manager reports loading, which is distinct from "no user".
type Manager struct {
	provider identity.Provider
	backend  Backend
	store    TokenStore
	logger   *log.Logger

	mu      sync.Mutex
	current Session
	loading bool
	subs    map[int]func(Session, bool)
	nextSub int
	unsub   func()
}

func NewManager(provider identity.Provider, backend Backend, store TokenStore, logger *log.Logger) *Manager {
	return &Manager{
		provider: provider,
		backend:  backend,
		store:    store,
		logger:   logger,
		loading:  true,
		subs:     make(map[int]func(Session, bool)),
	}
}

// Start attaches to the provider's session notifications. The first
// callback clears the loading state; a provider-side sign-out clears the
// session so the two never disagree.
func (m *Manager) Start() {
	m.unsub = m.provider.Subscribe(func(u *identity.User) {
		m.mu.Lock()
		m.loading = false
		if u == nil && m.current.Authenticated() {
			m.current = Session{}
			if err := m.store.Clear(); err != nil {
				m.logger.Warn("failed to clear stored token", "error", err)
			}
		}
		m.mu.Unlock()
		m.notify()
	})
}

// Stop detaches from the provider.
func (m *Manager) Stop() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Current returns the session and whether the manager is still waiting
// for the provider's first notification.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.loading
}

// Subscribe registers fn, fires it once with the current state, and
// returns an unsubscribe func.
func (m *Manager) Subscribe(fn func(Session, bool)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	current, loading := m.current, m.loading
	m.mu.Unlock()

	fn(current, loading)
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	current, loading := m.current, m.loading
	fns := make([]func(Session, bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(current, loading)
	}
}

// setSession persists the token first; the in-memory session is only
// installed once the credential is on disk, so a failed save never
// leaves the manager reporting authenticated without a stored token.
func (m *Manager) setSession(userID, token string) error {
	if err := m.store.Save(token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	m.mu.Lock()
	m.current = Session{UserID: userID, Token: token}
	m.loading = false
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *Manager) clearSession() {
	m.mu.Lock()
	m.current = Session{}
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear stored token", "error", err)
	}
	m.mu.Unlock()
	m.notify()
}

// SignUp registers the backend account (which creates the identity user
// as a side effect) and then signs in against the provider.
func (m *Manager) SignUp(ctx context.Context, fullName, email, password string) (Session, error) {
	if fullName == "" || email == "" || password == "" {
		return Session{}, ErrMissingFields
	}
	if _, err := m.backend.Register(ctx, fullName, email, password, ""); err != nil {
		return Session{}, err
	}
	user, idToken, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if err := m.setSession(user.UID, idToken); err != nil {
		return Session{}, err
	}
	m.logger.Info("signed up", "uid", user.UID)
	sess, _ := m.Current()
	return sess, nil
}

// SignIn authenticates against the provider first, then the backend.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, ErrMissingFields
	}
	user, idToken, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if err := m.backend.Login(ctx, email, password, ""); err != nil {
		return Session{}, err
	}
	if err := m.setSession(user.UID, idToken); err != nil {
		return Session{}, err
	}
	m.logger.Info("signed in", "uid", user.UID)
	sess, _ := m.Current()
	return sess, nil
}

// SignInWithGoogle runs the federated flow and reconciles with the
// backend: an existing account logs in, a missing one registers. If
// reconciliation fails the provider session is torn down again so the
// provider and the backend never disagree about who is signed in.
func (m *Manager) SignInWithGoogle(ctx context.Context) (Session, error) {
	user, idToken, err := m.provider.FederatedSignIn(ctx)
	if err != nil {
		return Session{}, err
	}
	// The token must be in place before reconciliation: /me is bearer
	// authenticated.
	if err := m.setSession(user.UID, idToken); err != nil {
		return Session{}, err
	}

	if err := m.reconcile(ctx, user); err != nil {
		m.logger.Warn("backend reconciliation failed, rolling back provider session", "uid", user.UID, "error", err)
		if soErr := m.provider.SignOut(ctx); soErr != nil {
			m.logger.Error("provider sign-out during rollback failed", "error", soErr)
		}
		m.clearSession()
		return Session{}, err
	}

	m.logger.Info("signed in with google", "uid", user.UID)
	sess, _ := m.Current()
	return sess, nil
}

func (m *Manager) reconcile(ctx context.Context, user *identity.User) error {
	check, err := m.backend.CheckUser(ctx, user.Email, user.UID)
	if err != nil {
		return err
	}
	if check.Exists {
		return m.backend.Login(ctx, user.Email, "", user.UID)
	}
	_, err = m.backend.Register(ctx, user.DisplayName, user.Email, "", user.UID)
	return err
}

// SignOut tears down the provider session and clears local state.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("Failed to log out: %w", err)
	}
	m.clearSession()
	return nil
}
