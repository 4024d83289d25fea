package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueit/backend/internal/queue"
)

func TestSessionService_CreateWithJoinCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.sessions.Create(ctx, CreateSessionParams{HostName: "DJ", JoinCode: "Party-Time"})
	require.NoError(t, err)
	assert.Equal(t, "party-time", sess.JoinCode)
	assert.Empty(t, sess.HostSecretHash)

	_, err = f.sessions.Create(ctx, CreateSessionParams{JoinCode: "PARTY-TIME"})
	assert.ErrorIs(t, err, queue.ErrJoinCodeTaken)

	_, err = f.sessions.Create(ctx, CreateSessionParams{JoinCode: "no"})
	assert.ErrorIs(t, err, ErrInvalidJoinCode)

	details, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, details.MemberCount)
	assert.Equal(t, "DJ", details.Session.HostName)
}

func TestSessionService_GeneratedCodeAndName(t *testing.T) {
	f := newFixture(t)
	sess, err := f.sessions.Create(context.Background(), CreateSessionParams{})
	require.NoError(t, err)

	_, err = NormalizeJoinCode(sess.JoinCode)
	assert.NoError(t, err)
	assert.NotEmpty(t, sess.HostName)
}

func TestSessionService_JoinAndLeave(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	ctx := context.Background()

	joined, member, err := f.sessions.Join(ctx, " "+sess.JoinCode+" ", "", "")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, joined.ID)
	assert.NotEmpty(t, member.UserID)
	assert.NotEmpty(t, member.DisplayName)

	details, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, details.MemberCount)

	require.NoError(t, f.sessions.Leave(ctx, sess.ID, member.UserID))
	assert.ErrorIs(t, f.sessions.Leave(ctx, sess.ID, member.UserID), queue.ErrNotMember)

	_, _, err = f.sessions.Join(ctx, "unknown-code", "", "")
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)
}

func TestSessionService_Rejoin(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	ctx := context.Background()

	got, err := f.sessions.Rejoin(ctx, sess.JoinCode, "secret")
	require.NoError(t, err)
	assert.Equal(t, sess.HostID, got.HostID)

	_, err = f.sessions.Rejoin(ctx, sess.JoinCode, "wrong")
	assert.ErrorIs(t, err, queue.ErrNotAuthorized)

	noSecret, err := f.sessions.Create(ctx, CreateSessionParams{})
	require.NoError(t, err)
	_, err = f.sessions.Rejoin(ctx, noSecret.JoinCode, "")
	assert.ErrorIs(t, err, queue.ErrNotAuthorized)
}

func TestSessionService_EndedSessionIsGone(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	ctx := context.Background()
	require.NoError(t, f.queue.EndSession(ctx, sess.ID, sess.HostID))

	_, err := f.sessions.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)
	_, _, err = f.sessions.Join(ctx, sess.JoinCode, "", "")
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)
}
