package auth_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientpilot/internal/db"
	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/engine/auth"
	"clientpilot/internal/migrate"
)

func newService(t *testing.T) auth.Service {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "auth.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	return auth.NewService(conn)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	ok, err := auth.VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = auth.VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)

	_, err = auth.VerifyPassword("x", "not-a-hash")
	assert.Error(t, err)
}

func TestSignupAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u, err := svc.Signup(ctx, auth.SignupInput{Username: "ada", Email: "Ada@Example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, "longenough", u.PasswordHash)

	got, err := svc.Login(ctx, "ada", "longenough")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	got, err = svc.Login(ctx, "ADA@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Login(ctx, "ada", "nope-nope")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "ghost", "longenough")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Signup(ctx, auth.SignupInput{Username: "ada", Email: "other@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, auth.ErrDuplicateUser)
}

func TestSignupValidation(t *testing.T) {
	svc := newService(t)
	cases := map[string]auth.SignupInput{
		"username": {Email: "a@b.co", Password: "longenough"},
		"email":    {Username: "a", Email: "no-at", Password: "longenough"},
		"password": {Username: "a", Email: "a@b.co", Password: "short"},
	}
	for field, in := range cases {
		_, err := svc.Signup(context.Background(), in)
		var ve engine.ValidationError
		require.ErrorAs(t, err, &ve, field)
		assert.Equal(t, field, ve.Field)
	}
}

func TestAPIKeys(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u, err := svc.Signup(ctx, auth.SignupInput{Username: "ada", Email: "ada@example.com", Password: "longenough"})
	require.NoError(t, err)

	raw, key, err := svc.CreateAPIKey(ctx, u.ID, "ci")
	require.NoError(t, err)
	assert.Contains(t, raw, "cp_")
	assert.NotContains(t, key.KeyHash, raw)

	owner, err := svc.ResolveAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.ID)

	_, err = svc.ResolveAPIKey(ctx, "cp_unknown")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	keys, err := svc.ListAPIKeys(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NoError(t, svc.DeleteAPIKey(ctx, u.ID, key.ID))
	_, err = svc.ResolveAPIKey(ctx, raw)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestTokens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens := auth.Tokens{Secret: "s3cret", TTL: time.Hour, Now: func() time.Time { return now }}
	user := domain.User{ID: "u-1", Username: "ada"}

	signed, exp, err := tokens.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "ada", claims.Username)

	_, err = auth.Tokens{Secret: "other"}.Parse(signed)
	assert.Error(t, err)

	later := auth.Tokens{Secret: "s3cret", Now: func() time.Time { return now.Add(2 * time.Hour) }}
	_, err = later.Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "clientpilot"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(unsigned)
	assert.Error(t, err)

	_, _, err = auth.Tokens{}.Issue(user)
	assert.Error(t, err)
}
