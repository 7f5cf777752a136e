package board

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindIssue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.issue(t, "first")

	got, err := env.svc.FindIssue(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = env.svc.FindIssue(ctx, strings.ToLower(a.ID[:20]))
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = env.svc.FindIssue(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.FindIssue(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindIssue_Ambiguous(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.issue(t, "one")
	env.issue(t, "two")

	// ULIDs created in the same run share their leading timestamp characters.
	_, err := env.svc.FindIssue(ctx, a.ID[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous issue ID")
}

func TestFindUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.FindUser(ctx, env.yoda.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yoda", u.Name)

	u, err = env.svc.FindUser(ctx, "  pickle RICK ")
	require.NoError(t, err)
	assert.Equal(t, env.rick.ID, u.ID)

	_, err = env.svc.FindUser(ctx, "Morty")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.FindUser(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := env.svc.FindUsers(ctx, []string{"Yoda", env.gaben.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{env.yoda.ID, env.gaben.ID}, ids)

	_, err = env.svc.FindUsers(ctx, []string{"Yoda", "Morty"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.CreateUser(ctx, "  Morty  ", " https://example.com/m.png ")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Morty", u.Name)
	assert.Equal(t, "https://example.com/m.png", u.AvatarURL)

	_, err = env.svc.CreateUser(ctx, "   ", "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	users, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)
}
