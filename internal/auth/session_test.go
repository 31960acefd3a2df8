package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/post-scheduler/config"
	"github.com/d60-Lab/post-scheduler/internal/linkedin"
)

func newTestManager(fallback string) (*Manager, *time.Time) {
	m := NewManager(config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", Expire: time.Hour}, fallback)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

var profile = &linkedin.Profile{Sub: "abc123", Name: "Ada", Email: "ada@example.com"}

func TestManager_IssueAndParse(t *testing.T) {
	m, _ := newTestManager("")

	signed, exp, err := m.Issue(profile, "li-token")
	require.NoError(t, err)
	assert.NotEmpty(t, signed)

	claims, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "abc123", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "li-token", claims.AccessToken)
	assert.True(t, claims.ExpiresAt.Time.Equal(exp))
}

func TestManager_ParseRejects(t *testing.T) {
	m, now := newTestManager("")
	signed, _, err := m.Issue(profile, "li-token")
	require.NoError(t, err)

	_, err = m.Parse(signed + "x")
	assert.ErrorIs(t, err, ErrInvalidSession)

	other := NewManager(config.JWTConfig{Secret: "another-secret-of-enough-length", Expire: time.Hour}, "")
	_, err = other.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidSession)

	*now = now.Add(2 * time.Hour)
	_, err = m.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidSession)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AccessToken: "x"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManager_IssueRequiresToken(t *testing.T) {
	m, _ := newTestManager("")
	_, _, err := m.Issue(profile, "")
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestManager_TokenSource(t *testing.T) {
	m, now := newTestManager("static")
	ctx := context.Background()

	assert.Equal(t, "static", m.Token(ctx))

	_, _, err := m.Issue(profile, "session-token")
	require.NoError(t, err)
	assert.Equal(t, "session-token", m.Token(ctx))

	*now = now.Add(2 * time.Hour)
	assert.Equal(t, "static", m.Token(ctx))

	empty, _ := newTestManager("")
	assert.Empty(t, empty.Token(ctx))
}

func TestManager_Remember(t *testing.T) {
	m, now := newTestManager("")
	m.Remember(&Claims{AccessToken: "later", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}})
	assert.Equal(t, "later", m.Token(context.Background()))

	m.Remember(&Claims{AccessToken: "older", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}})
	assert.Equal(t, "later", m.Token(context.Background()))
}
