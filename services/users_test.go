// services/users_test.go
package services

import (
	"testing"

	"community-engagement-system/models"

	"github.com/stretchr/testify/require"
)

func TestEnsureUserIsIdempotent(t *testing.T) {
	env := setupTestEnv(t)

	first, err := env.Users.EnsureUser("U12345", "Ada")
	require.NoError(t, err)

	second, err := env.Users.EnsureUser("U12345", "Ada Again")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Ada", second.DisplayName, "existing member is returned untouched")
}

func TestEnsureUserRequiresSlackID(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.Users.EnsureUser("   ", "Nameless")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestUserLookups(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "U54321")

	byID, err := env.Users.GetUser(user.ID)
	require.NoError(t, err)
	require.Equal(t, user.SlackID, byID.SlackID)

	bySlack, err := env.Users.GetUserBySlackID(user.SlackID)
	require.NoError(t, err)
	require.Equal(t, user.ID, bySlack.ID)

	_, err = env.Users.GetUser("missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.Users.GetUserBySlackID("missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}
