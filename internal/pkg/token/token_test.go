package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestManager_IssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour)

	signed, expiresAt, err := m.Issue("alice", "Customer", "user-1", "session-1")
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	claims, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "Customer", claims.Role)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "session-1", claims.ID)
}

func TestManager_DefaultTTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, NewManager("secret", 0).TTL())
}

func TestManager_Parse_ExpiredAfterClockSkip(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager("secret", 24*time.Hour).WithClock(fixedClock(issuedAt))

	signed, _, err := m.Issue("alice", "Customer", "user-1", "session-1")
	require.NoError(t, err)

	_, err = m.WithClock(fixedClock(issuedAt.Add(23 * time.Hour))).Parse(signed)
	assert.NoError(t, err)

	_, err = m.WithClock(fixedClock(issuedAt.Add(24*time.Hour + time.Second))).Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestManager_Parse_WrongSecret(t *testing.T) {
	signed, _, err := NewManager("secret1", time.Hour).Issue("alice", "Customer", "user-1", "session-1")
	require.NoError(t, err)

	_, err = NewManager("secret2", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestManager_Parse_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		Username: "alice",
		Role:     "Customer",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewManager("secret", time.Hour).Parse(signed)
	assert.Error(t, err)
}

func TestManager_Parse_RequiresExpiry(t *testing.T) {
	claims := &Claims{
		Username:         "alice",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewManager("secret", time.Hour).Parse(signed)
	assert.Error(t, err)
}

func TestManager_Parse_Malformed(t *testing.T) {
	_, err := NewManager("secret", time.Hour).Parse("not.a.token")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
}

func TestManager_Parse_RejectsUnknownRole(t *testing.T) {
	m := NewManager("secret", time.Hour)

	signed, _, err := m.Issue("alice", "Root", "user-1", "session-1")
	require.NoError(t, err)

	_, err = m.Parse(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)

	for _, role := range []string{"Customer", "Manager", "Admin"} {
		signed, _, err := m.Issue("alice", role, "user-1", "session-1")
		require.NoError(t, err)
		_, err = m.Parse(signed)
		assert.NoError(t, err, role)
	}
}
