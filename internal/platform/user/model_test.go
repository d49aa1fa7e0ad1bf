package user_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhmetov/payvault/internal/platform/user"
)

func TestUser_SetAndCheckPassword(t *testing.T) {
	u := &user.User{ID: uuid.New(), Email: "a@example.com", Role: user.RoleUser}

	require.NoError(t, u.SetPassword("correct-horse"))
	assert.NotEmpty(t, u.PasswordHash)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)

	assert.NoError(t, u.CheckPassword("correct-horse"))
	assert.ErrorIs(t, u.CheckPassword("battery-staple"), user.ErrInvalidPassword)
}

func TestUser_SetPassword_TooShort(t *testing.T) {
	u := &user.User{}
	assert.ErrorIs(t, u.SetPassword("short"), user.ErrPasswordTooShort)
}

func TestUser_Validate(t *testing.T) {
	u := &user.User{Email: "a@example.com", PasswordHash: "x", Role: user.RoleAdmin}
	assert.NoError(t, u.Validate())
	assert.True(t, u.IsAdmin())

	u.Role = "superuser"
	assert.ErrorIs(t, u.Validate(), user.ErrInvalidRole)

	u.Role = user.RoleUser
	u.Email = "not-an-email"
	assert.ErrorIs(t, u.Validate(), user.ErrInvalidEmail)
	assert.False(t, u.IsAdmin())
}
