package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/models"
)

type AuthEventType string

const (
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered to OnAuthStateChange listeners whenever the
// session changes, whether from a local call or a backend push.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

type Session struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresAt    time.Time        `json:"expires_at"`
	User         models.Principal `json:"user"`
}

func (s *Session) expired() bool {
	return nowFunc().After(s.ExpiresAt.Add(-30 * time.Second))
}

// AuthClient manages the token lifecycle against the backend's auth
// endpoints. Tokens are persisted so a restarted process can resume its
// session, mirroring the hosted SDK's local-storage behavior.
type AuthClient struct {
	c         *Client
	tokenPath string

	mu        sync.RWMutex
	session   *Session
	listeners map[int]func(AuthEvent)
	nextID    int
}

func newAuthClient(c *Client, stateDir string) *AuthClient {
	a := &AuthClient{
		c:         c,
		listeners: map[int]func(AuthEvent){},
	}
	if stateDir != "" {
		a.tokenPath = filepath.Join(stateDir, "session.json")
	}
	return a
}

// tokenResponse is the auth endpoint's grant response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// GetSession probes for an existing session: the in-memory one if still
// valid, otherwise tokens persisted by a previous run, refreshed and then
// verified against the backend. (nil, nil) means nobody is signed in.
func (a *AuthClient) GetSession(ctx context.Context) (*Session, error) {
	if s := a.currentSession(); s != nil && !s.expired() {
		return s, nil
	}

	stored := a.loadPersisted()
	a.mu.RLock()
	cur := a.session
	a.mu.RUnlock()
	if cur == nil && stored == nil {
		return nil, nil
	}
	if cur == nil {
		cur = stored
	}

	if cur.expired() {
		refreshed, err := a.refresh(ctx, cur.RefreshToken)
		if err != nil {
			if errs.IsCanceled(err) || errs.IsTransient(err) {
				return nil, err
			}
			// Refresh token rejected: the stored session is dead.
			a.clearLocal()
			return nil, nil
		}
		cur = refreshed
	}

	if err := a.verify(ctx, cur.AccessToken); err != nil {
		if errs.IsAuthorization(err) {
			a.clearLocal()
			return nil, nil
		}
		return nil, err
	}

	a.setSession(cur)
	return cur, nil
}

// GetUser returns the principal of the current session, if any.
func (a *AuthClient) GetUser() (models.Principal, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return models.Principal{}, false
	}
	return a.session.User, true
}

// SignInWithPassword exchanges credentials for a session. Any failure other
// than a cancellation surfaces to the caller.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	q := url.Values{"grant_type": {"password"}}
	var tr tokenResponse
	err := a.c.doJSON(ctx, http.MethodPost, "/auth/v1/token", q, nil,
		map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return nil, err
	}
	s, err := a.sessionFromToken(tr)
	if err != nil {
		return nil, err
	}
	a.setSession(s)
	a.persist(s)
	a.dispatch(AuthEvent{Type: EventSignedIn, Session: s})
	return s, nil
}

// SignOut revokes the session with the backend and clears local state. The
// local session is cleared even when the backend call fails, so the process
// never keeps acting with a token the user asked to drop.
func (a *AuthClient) SignOut(ctx context.Context) error {
	a.mu.RLock()
	had := a.session != nil
	a.mu.RUnlock()

	var err error
	if had {
		err = a.c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
	}
	a.clearLocal()
	a.dispatch(AuthEvent{Type: EventSignedOut})
	if err != nil && !errs.IsCanceled(err) {
		return err
	}
	return nil
}

// Revoke clears the session without a backend round trip. Used when the
// push channel reports the session was ended elsewhere.
func (a *AuthClient) Revoke() {
	a.mu.RLock()
	had := a.session != nil
	a.mu.RUnlock()
	if !had {
		return
	}
	a.clearLocal()
	a.dispatch(AuthEvent{Type: EventSignedOut})
}

// OnAuthStateChange registers a listener for session changes and returns an
// unsubscribe func. Listeners run synchronously on the dispatching call.
func (a *AuthClient) OnAuthStateChange(fn func(AuthEvent)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *AuthClient) currentSession() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

func (a *AuthClient) setSession(s *Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *AuthClient) clearLocal() {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	if a.tokenPath != "" {
		os.Remove(a.tokenPath)
	}
}

func (a *AuthClient) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	q := url.Values{"grant_type": {"refresh_token"}}
	var tr tokenResponse
	err := a.c.doJSON(ctx, http.MethodPost, "/auth/v1/token", q, nil,
		map[string]string{"refresh_token": refreshToken}, &tr)
	if err != nil {
		return nil, err
	}
	s, err := a.sessionFromToken(tr)
	if err != nil {
		return nil, err
	}
	a.persist(s)
	a.dispatch(AuthEvent{Type: EventTokenRefreshed, Session: s})
	return s, nil
}

func (a *AuthClient) verify(ctx context.Context, accessToken string) error {
	var user struct {
		ID string `json:"id"`
	}
	return a.c.doJSON(ctx, http.MethodGet, "/auth/v1/user", nil,
		map[string]string{"Authorization": "Bearer " + accessToken}, nil, &user)
}

// sessionFromToken builds a Session, reading identity claims out of the
// access token. The token is not verified here: the backend is the
// verifier, the client only reads what it was handed.
func (a *AuthClient) sessionFromToken(tr tokenResponse) (*Session, error) {
	s := &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    nowFunc().Add(time.Duration(tr.ExpiresIn) * time.Second),
		User:         models.Principal{ID: tr.User.ID, Email: tr.User.Email},
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err == nil {
		if sub, _ := claims.GetSubject(); sub != "" {
			s.User.ID = sub
		}
		if email, ok := claims["email"].(string); ok && email != "" {
			s.User.Email = email
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			s.ExpiresAt = exp.Time
		}
	}
	if s.User.ID == "" {
		return nil, errNoSession
	}
	return s, nil
}

func (a *AuthClient) dispatch(ev AuthEvent) {
	a.mu.RLock()
	fns := make([]func(AuthEvent), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (a *AuthClient) persist(s *Session) {
	if a.tokenPath == "" {
		return
	}
	buf, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0o700); err != nil {
		a.c.log.Warn("persist session", "err", err)
		return
	}
	if err := os.WriteFile(a.tokenPath, buf, 0o600); err != nil {
		a.c.log.Warn("persist session", "err", err)
	}
}

func (a *AuthClient) loadPersisted() *Session {
	if a.tokenPath == "" {
		return nil
	}
	buf, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return nil
	}
	var s Session
	if err := json.Unmarshal(buf, &s); err != nil || s.RefreshToken == "" {
		return nil
	}
	return &s
}
