package fakeuserrepo_test

import (
	"testing"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/users"
	fakeuserrepo "github.com/jrsteele09/dashboard-auth/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestNewSeededUserRepo(t *testing.T) {
	ur, err := fakeuserrepo.NewSeededUserRepo()
	require.NoError(t, err)

	admin, err := ur.GetByUsername(users.BootstrapUsername)
	require.NoError(t, err)
	require.Equal(t, users.BootstrapEmail, admin.Email)
	require.NotEmpty(t, admin.ID)
	require.True(t, admin.CheckPassword(users.BootstrapPassword))
	require.False(t, admin.CheckPassword("wrong"))
}

func TestFakeUserRepo_AddRejectsDuplicate(t *testing.T) {
	ur := fakeuserrepo.NewFakeUserRepo()
	require.NoError(t, ur.Add(&users.User{Username: "alice", Email: "a@x.com"}))

	err := ur.Add(&users.User{Username: "alice", Email: "other@x.com"})
	require.ErrorIs(t, err, autherrors.ErrDuplicateUser)

	list, err := ur.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a@x.com", list[0].Email)
}

func TestFakeUserRepo_UnknownUser(t *testing.T) {
	ur := fakeuserrepo.NewFakeUserRepo()

	_, err := ur.GetByUsername("ghost")
	require.ErrorIs(t, err, autherrors.ErrNotFound)

	ok, err := ur.Exists("ghost")
	require.NoError(t, err)
	require.False(t, ok)
}
