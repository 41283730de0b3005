package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberdesk/memberdesk/internal/auth"
	"github.com/memberdesk/memberdesk/internal/shared"
	_ "github.com/memberdesk/memberdesk/testing"
)

func TestGetCurrentUserRefetchesProfile(t *testing.T) {
	service, repo := newTestService(t)
	sess := newTestSession(t)
	_, err := service.Signup(context.Background(), sess, validSignup())
	require.NoError(t, err)

	resolver := auth.NewResolver(repo)
	ctx := shared.ContextWithSession(context.Background(), sess)

	profile, err := resolver.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", profile.Email)
	assert.Equal(t, "Admin", profile.FirstName)
	assert.Equal(t, "User", profile.LastName)
	assert.Equal(t, auth.RoleUser, profile.Role)
}

func TestGetCurrentUserWithoutSession(t *testing.T) {
	_, repo := newTestService(t)
	resolver := auth.NewResolver(repo)

	_, err := resolver.GetCurrentUser(context.Background())
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestGetCurrentUserAfterClear(t *testing.T) {
	service, repo := newTestService(t)
	sess := newTestSession(t)
	_, err := service.Signup(context.Background(), sess, validSignup())
	require.NoError(t, err)

	sess.ClearUser()
	resolver := auth.NewResolver(repo)
	ctx := shared.ContextWithSession(context.Background(), sess)

	_, err = resolver.GetCurrentUser(ctx)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated, "strict accessor fails once the session is cleared")
}

func TestFetchSessionUserProbe(t *testing.T) {
	service, repo := newTestService(t)
	resolver := auth.NewResolver(repo)

	// No session in context at all.
	assert.Nil(t, resolver.FetchSessionUser(context.Background()))

	sess := newTestSession(t)
	ctx := shared.ContextWithSession(context.Background(), sess)
	assert.Nil(t, resolver.FetchSessionUser(ctx), "empty session probes as nil, not as a failure")

	_, err := service.Signup(context.Background(), sess, validSignup())
	require.NoError(t, err)
	snapshot := resolver.FetchSessionUser(ctx)
	require.NotNil(t, snapshot)
	assert.Equal(t, "admin@example.com", snapshot.Email)

	sess.ClearUser()
	assert.Nil(t, resolver.FetchSessionUser(ctx), "probe returns nil after logout without failing")
}
