package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(testSecret, time.Hour)

	token, err := svc.GenerateToken("ops-dashboard")
	require.NoError(t, err)

	sub, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-dashboard", sub)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewTokenService(testSecret, time.Hour)

	other, err := NewTokenService("ffffffffffffffffffffffffffffffff", time.Hour).GenerateToken("x")
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.Error(t, err, "wrong secret")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "x",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err, "expired")

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "x",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err, "issuer")

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestGenerateToken_Disabled(t *testing.T) {
	svc := NewTokenService("", 0)
	assert.False(t, svc.Enabled())
	assert.Equal(t, 24*time.Hour, svc.Expiry)

	_, err := svc.GenerateToken("x")
	assert.Error(t, err)

	_, err = NewTokenService(testSecret, time.Hour).GenerateToken("")
	assert.Error(t, err)
}
