// Package session owns the authenticated-identity lifecycle: who is acting,
// what their role profile says, and whether the first session probe has
// resolved. Everything that reads role-scoped data gates on Ready().
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/logging"
	"github.com/junaidrashid-git/storefront-core/models"
)

const profileLookupTimeout = 10 * time.Second

type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

type Store struct {
	c        *client.Client
	log      *slog.Logger
	validate *validator.Validate

	mu        sync.RWMutex
	identity  *models.Principal
	role      models.Role
	roleKnown bool

	readyOnce sync.Once
	ready     chan struct{}

	unsub       func()
	unsubRemote func()
}

func New(c *client.Client, log *slog.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	s := &Store{
		c:        c,
		log:      log,
		validate: validator.New(),
		ready:    make(chan struct{}),
	}
	s.unsub = c.Auth.OnAuthStateChange(s.onIdentityChange)
	return s
}

// Ready is closed exactly once, after the first session probe resolves.
// Role-scoped fetches wait on it; public fetches must not.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Initialize probes the backend for an existing session. Cancellation of
// the probe means "no session yet" and leaves Ready open for a later
// attempt; every other outcome, including failure, resolves Ready so
// downstream fetches are not stalled forever.
func (s *Store) Initialize(ctx context.Context) error {
	sess, err := s.c.Auth.GetSession(ctx)
	if err != nil {
		if errs.IsCanceled(err) {
			return nil
		}
		s.log.Warn("session probe failed", "err", err)
		s.markReady()
		return err
	}

	if sess != nil {
		s.setIdentity(sess.User)
		s.resolveRole(ctx, sess.User.ID)
		s.watchRemote(sess.User.ID)
	}
	s.markReady()
	return nil
}

// SignIn validates credentials locally, then delegates to the backend.
// A cancelled request is not surfaced; session state lands via the auth
// change events, not here.
func (s *Store) SignIn(ctx context.Context, creds Credentials) error {
	if err := s.validate.Struct(creds); err != nil {
		return errs.Validation(err)
	}
	if _, err := s.c.Auth.SignInWithPassword(ctx, creds.Email, creds.Password); err != nil {
		if errs.IsCanceled(err) {
			return nil
		}
		return err
	}
	return nil
}

// SignOut ends the session. The remote cart is left untouched: it belongs
// to the account, not the device.
func (s *Store) SignOut(ctx context.Context) error {
	return s.c.Auth.SignOut(ctx)
}

func (s *Store) Identity() (models.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return models.Principal{}, false
	}
	return *s.identity, true
}

// Role returns the resolved profile role. ok is false while unknown, which
// downstream code treats as "no elevated access", never as an error.
func (s *Store) Role() (models.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role, s.roleKnown
}

func (s *Store) Close() {
	if s.unsub != nil {
		s.unsub()
	}
	s.stopWatchRemote()
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Store) setIdentity(p models.Principal) {
	s.mu.Lock()
	s.identity = &p
	s.mu.Unlock()
}

func (s *Store) clearIdentity() {
	s.mu.Lock()
	s.identity = nil
	s.role = ""
	s.roleKnown = false
	s.mu.Unlock()
}

// onIdentityChange reacts to session changes, whether initiated locally or
// pushed by the backend.
func (s *Store) onIdentityChange(ev client.AuthEvent) {
	switch ev.Type {
	case client.EventSignedIn, client.EventTokenRefreshed:
		if ev.Session == nil {
			return
		}
		s.setIdentity(ev.Session.User)
		ctx, cancel := context.WithTimeout(context.Background(), profileLookupTimeout)
		defer cancel()
		s.resolveRole(ctx, ev.Session.User.ID)
		s.watchRemote(ev.Session.User.ID)
	case client.EventSignedOut:
		s.stopWatchRemote()
		s.clearIdentity()
	}
}

// resolveRole looks up the role profile. A miss or failure is logged and
// leaves the role unknown; it never blocks readiness.
func (s *Store) resolveRole(ctx context.Context, userID string) {
	var row models.ProfileRow
	err := s.c.From("profiles").Select("id,role").Eq("id", userID).Single().Get(ctx, &row)
	if err != nil {
		s.log.Warn("role profile lookup failed", "user_id", userID, "err", err)
		return
	}
	role, err := row.Domain()
	if err != nil {
		s.log.Warn("role profile malformed", "user_id", userID, "err", err)
		return
	}
	s.mu.Lock()
	s.role = role
	s.roleKnown = true
	s.mu.Unlock()
}

// watchRemote subscribes to backend-pushed session events for the signed-in
// user, so a sign-out elsewhere ends this device's session too. Push being
// unavailable degrades to local-only events.
func (s *Store) watchRemote(userID string) {
	s.stopWatchRemote()
	unsub, err := s.c.Realtime.Subscribe("auth:"+userID, func(ev client.RealtimeEvent) {
		switch ev.Event {
		case "SIGNED_OUT":
			s.c.Auth.Revoke()
		case "USER_UPDATED":
			var p models.Principal
			if json.Unmarshal(ev.Payload, &p) == nil && p.ID != "" {
				s.setIdentity(p)
			}
		}
	})
	if err != nil {
		s.log.Warn("session push channel unavailable", "err", err)
		return
	}
	s.mu.Lock()
	s.unsubRemote = unsub
	s.mu.Unlock()
}

func (s *Store) stopWatchRemote() {
	s.mu.Lock()
	unsub := s.unsubRemote
	s.unsubRemote = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
