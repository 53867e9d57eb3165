package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mintoons/internal/models"
	"mintoons/internal/security"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.auth.Register(ctx, "  Admin@Example.com ", "password123", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", admin.Email)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NotEmpty(t, admin.PenName)
	assert.NotEqual(t, "password123", admin.PasswordHash)

	child, err := env.auth.Register(ctx, "kid@example.com", "password123", "Kit")
	require.NoError(t, err)
	assert.Equal(t, models.RoleChild, child.Role)
	assert.Equal(t, models.TierFree, child.SubscriptionTier)
	assert.Equal(t, 2, env.mailer.count("welcome"))

	tests := []struct {
		name     string
		email    string
		password string
		userName string
		wantErr  error
	}{
		{"duplicate email", "KID@example.com", "password123", "Kit", ErrEmailTaken},
		{"bad email", "not-an-email", "password123", "Kit", nil},
		{"short password", "new@example.com", "short", "Kit", nil},
		{"missing name", "new@example.com", "password123", " ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, tt.email, tt.password, tt.userName)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var vErr *models.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestRegisterWelcomeFailureIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errBoom

	user, err := env.auth.Register(context.Background(), "kid@example.com", "password123", "Kit")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
}

func TestRegisterClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")

	settings := models.DefaultSiteSettings()
	settings.AllowRegistration = false
	_, err := env.admin.UpdateSettings(ctx, settings)
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, "late@example.com", "password123", "Late")
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestLoginAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.register(t, "admin@example.com")
	child := env.register(t, "child@example.com")

	_, err := env.auth.Login(ctx, "child@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := env.auth.Login(ctx, " CHILD@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, child.ID, result.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, time.Minute)

	user, err := env.auth.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, child.ID, user.ID)

	_, err = env.auth.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, security.ErrTokenMalformed)

	disabled := false
	_, err = env.admin.UpdateUser(ctx, admin.ID, child.ID, models.UserUpdate{IsActive: &disabled})
	require.NoError(t, err)

	_, err = env.auth.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, ErrAccountDisabled)
	_, err = env.auth.Login(ctx, "child@example.com", "password123")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "admin@example.com")
	env.register(t, "child@example.com")

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Zero(t, env.mailer.count("password_reset"))

	require.NoError(t, env.auth.RequestPasswordReset(ctx, "Child@example.com"))
	require.Equal(t, 1, env.mailer.count("password_reset"))
	token := env.mailer.resetToken
	require.NotEmpty(t, token)

	err := env.auth.ResetPassword(ctx, token, "short")
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)

	assert.ErrorIs(t, env.auth.ResetPassword(ctx, "bogus", "new-password-1"), ErrInvalidResetToken)

	require.NoError(t, env.auth.ResetPassword(ctx, token, "new-password-1"))
	err = env.auth.ResetPassword(ctx, token, "new-password-2")
	assert.ErrorIs(t, err, ErrResetTokenUsed)
	assert.EqualError(t, err, "this reset link has already been used")

	_, err = env.auth.Login(ctx, "child@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "child@example.com", "new-password-1")
	assert.NoError(t, err)
}
