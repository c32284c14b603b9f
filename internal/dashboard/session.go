package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lankasat/lankasat-live/internal/auth"
	"github.com/lankasat/lankasat-live/internal/dashboard/api"
)

// ErrSessionExpired is returned when the gateway rejects the stored token.
var ErrSessionExpired = errors.New("session expired")

// ErrPasswordTooShort blocks registration before any network call is made.
var ErrPasswordTooShort = errors.New("password must be at least 6 characters")

// Session is the persisted token and profile pair.
type Session struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

// Registered reports whether the session belongs to a registered account
// rather than a guest.
func (s Session) Registered() bool {
	return s.User.Role != auth.RoleGuest
}

// SessionStore owns the single client session: it is the only writer, and
// every other component observes it through Subscribe. The session is
// persisted to a state file so it survives restarts.
type SessionStore struct {
	client *api.Client
	path   string

	mu      sync.Mutex
	session *Session
	nextSub int
	subs    map[int]func(*Session)
}

// NewSessionStore loads any persisted session from path and installs its
// token on the client. A missing or unreadable state file starts anonymous.
func NewSessionStore(client *api.Client, path string) *SessionStore {
	s := &SessionStore{
		client: client,
		path:   path,
		subs:   make(map[int]func(*Session)),
	}
	if raw, err := os.ReadFile(path); err == nil {
		var session Session
		if json.Unmarshal(raw, &session) == nil && session.Token != "" {
			s.session = &session
			client.SetToken(session.Token)
		}
	}
	return s
}

// Login authenticates and replaces the current session.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	s.install(Session{Token: resp.AccessToken, User: resp.User})
	return nil
}

// Register creates an account and logs into it. The password length check
// runs locally; no request is made for an invalid password.
func (s *SessionStore) Register(ctx context.Context, email, password, displayName string) error {
	if len(password) < 6 {
		return ErrPasswordTooShort
	}
	resp, err := s.client.Register(ctx, email, password, displayName)
	if err != nil {
		return err
	}
	s.install(Session{Token: resp.AccessToken, User: resp.User})
	return nil
}

// LoginAsGuest starts an anonymous guest session.
func (s *SessionStore) LoginAsGuest(ctx context.Context) error {
	resp, err := s.client.GuestLogin(ctx)
	if err != nil {
		return err
	}
	s.install(Session{Token: resp.AccessToken, User: resp.User})
	return nil
}

// Logout clears the session, its persisted state, and the client token.
func (s *SessionStore) Logout() {
	s.clear()
}

// Current returns the active session, if any.
func (s *SessionStore) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Validate confirms the stored token against /auth/me, refreshing the cached
// profile. A 401 clears the session and returns ErrSessionExpired - the only
// server-driven forced logout. Other failures keep the cached session.
func (s *SessionStore) Validate(ctx context.Context) error {
	current, ok := s.Current()
	if !ok {
		return ErrSessionExpired
	}

	user, err := s.client.Me(ctx)
	if errors.Is(err, api.ErrUnauthorized) {
		s.clear()
		return ErrSessionExpired
	}
	if err != nil {
		// Transient failure: best-effort probe, keep the cached profile.
		return nil
	}

	s.install(Session{Token: current.Token, User: user})
	return nil
}

// Subscribe registers a callback invoked synchronously on every session
// change; nil means logged out. The returned function unsubscribes.
func (s *SessionStore) Subscribe(fn func(*Session)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) install(session Session) {
	s.client.SetToken(session.Token)

	s.mu.Lock()
	s.session = &session
	subs := s.snapshotSubs()
	s.mu.Unlock()

	// Persistence is a cache; the in-memory session stays authoritative.
	_ = s.persist(session)
	for _, fn := range subs {
		fn(&session)
	}
}

func (s *SessionStore) clear() {
	s.client.SetToken("")

	s.mu.Lock()
	s.session = nil
	subs := s.snapshotSubs()
	s.mu.Unlock()

	_ = os.Remove(s.path)
	for _, fn := range subs {
		fn(nil)
	}
}

func (s *SessionStore) persist(session Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(s.path, raw, 0o600)
}

func (s *SessionStore) snapshotSubs() []func(*Session) {
	out := make([]func(*Session), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
