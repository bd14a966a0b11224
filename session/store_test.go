package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junaidrashid-git/storefront-core/client"
	"github.com/junaidrashid-git/storefront-core/client/clienttest"
	"github.com/junaidrashid-git/storefront-core/errs"
	"github.com/junaidrashid-git/storefront-core/models"
	"github.com/junaidrashid-git/storefront-core/session"
)

func fixture(t *testing.T) (*session.Store, *client.Client, *clienttest.Server) {
	t.Helper()
	srv := clienttest.New(t)
	c := client.New(srv.Config(t.TempDir()), nil)
	s := session.New(c, nil)
	t.Cleanup(s.Close)
	return s, c, srv
}

func TestInitializeWithoutSession(t *testing.T) {
	s, _, _ := fixture(t)
	require.False(t, s.IsReady())

	require.NoError(t, s.Initialize(context.Background()))
	require.True(t, s.IsReady(), "ready resolves even with nobody signed in")
	_, ok := s.Identity()
	require.False(t, ok)
}

func TestInitializeCancelledProbeLeavesReadyOpen(t *testing.T) {
	srv := clienttest.New(t)
	dir := t.TempDir()
	srv.AddUser("maya@example.com", "hunter22")

	// Leave persisted tokens behind so the next probe has to hit the
	// backend.
	c1 := client.New(srv.Config(dir), nil)
	_, err := c1.Auth.SignInWithPassword(context.Background(), "maya@example.com", "hunter22")
	require.NoError(t, err)

	c2 := client.New(srv.Config(dir), nil)
	s := session.New(c2, nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Initialize(ctx), "a cancelled probe is no session yet, not an error")
	require.False(t, s.IsReady(), "cancellation must not resolve readiness")

	// A later attempt succeeds and resolves it.
	require.NoError(t, s.Initialize(context.Background()))
	require.True(t, s.IsReady())
	id, ok := s.Identity()
	require.True(t, ok)
	require.Equal(t, "user-maya", id.ID)
}

func TestProfileLookupFailureDoesNotBlockReady(t *testing.T) {
	s, _, srv := fixture(t)
	srv.AddUser("maya@example.com", "hunter22")
	srv.FailNext("GET", "/rest/v1/profiles", 1)

	require.NoError(t, s.SignIn(context.Background(), session.Credentials{
		Email: "maya@example.com", Password: "hunter22",
	}))
	require.NoError(t, s.Initialize(context.Background()))

	require.True(t, s.IsReady())
	_, known := s.Role()
	require.False(t, known, "failed lookup leaves the role unknown, not errored")
}

func TestSignInResolvesRoleProfile(t *testing.T) {
	s, _, srv := fixture(t)
	uid := srv.AddUser("maya@example.com", "hunter22")
	srv.Seed("profiles", map[string]any{"id": uid, "role": "wholesale"})

	require.NoError(t, s.SignIn(context.Background(), session.Credentials{
		Email: "maya@example.com", Password: "hunter22",
	}))

	id, ok := s.Identity()
	require.True(t, ok)
	require.Equal(t, uid, id.ID)
	role, known := s.Role()
	require.True(t, known)
	require.Equal(t, models.RoleWholesale, role)
}

func TestSignInValidatesCredentialsLocally(t *testing.T) {
	s, _, srv := fixture(t)

	err := s.SignIn(context.Background(), session.Credentials{Email: "not-an-email", Password: "hunter22"})
	require.True(t, errs.IsValidation(err))
	require.Zero(t, srv.CountRequests("POST /auth/v1/token"), "invalid input never reaches the backend")
}

func TestSignInBadCredentialsSurface(t *testing.T) {
	s, _, srv := fixture(t)
	srv.AddUser("maya@example.com", "hunter22")

	err := s.SignIn(context.Background(), session.Credentials{
		Email: "maya@example.com", Password: "wrong-password",
	})
	require.Error(t, err)
}

func TestSignOutClearsIdentityAndProfile(t *testing.T) {
	s, _, srv := fixture(t)
	uid := srv.AddUser("maya@example.com", "hunter22")
	srv.Seed("profiles", map[string]any{"id": uid, "role": "admin"})

	require.NoError(t, s.SignIn(context.Background(), session.Credentials{
		Email: "maya@example.com", Password: "hunter22",
	}))
	require.NoError(t, s.SignOut(context.Background()))

	_, ok := s.Identity()
	require.False(t, ok)
	_, known := s.Role()
	require.False(t, known)
}

func TestRemoteSignOutRevokesSession(t *testing.T) {
	s, c, srv := fixture(t)
	uid := srv.AddUser("maya@example.com", "hunter22")

	require.NoError(t, s.SignIn(context.Background(), session.Credentials{
		Email: "maya@example.com", Password: "hunter22",
	}))
	_, ok := s.Identity()
	require.True(t, ok)
	require.Eventually(t, func() bool { return srv.Subscribed("auth:" + uid) },
		2*time.Second, 10*time.Millisecond)

	srv.Push("auth:"+uid, "SIGNED_OUT", nil)

	require.Eventually(t, func() bool {
		_, ok := s.Identity()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	sess, err := c.Auth.GetSession(context.Background())
	require.NoError(t, err)
	require.Nil(t, sess, "revocation drops the local session")
}

func TestRemoteUserUpdateRefreshesIdentity(t *testing.T) {
	s, _, srv := fixture(t)
	uid := srv.AddUser("maya@example.com", "hunter22")

	require.NoError(t, s.SignIn(context.Background(), session.Credentials{
		Email: "maya@example.com", Password: "hunter22",
	}))
	require.Eventually(t, func() bool { return srv.Subscribed("auth:" + uid) },
		2*time.Second, 10*time.Millisecond)

	srv.Push("auth:"+uid, "USER_UPDATED", models.Principal{ID: uid, Email: "maya@shipping.example.com"})

	require.Eventually(t, func() bool {
		id, ok := s.Identity()
		return ok && id.Email == "maya@shipping.example.com"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatedReadWaitsForInitialize(t *testing.T) {
	s, _, _ := fixture(t)

	select {
	case <-s.Ready():
		t.Fatal("ready must stay open before the probe resolves")
	case <-time.After(10 * time.Millisecond):
	}

	require.NoError(t, s.Initialize(context.Background()))
	select {
	case <-s.Ready():
	default:
		t.Fatal("ready must be closed after the probe resolves")
	}
}
