package jwtutil

import (
	"testing"

	"ecowaste-service/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestConfig(t *testing.T, signingKey string, expirationHours int) {
	t.Helper()
	Initialize(&config.JWTConfig{
		SigningKey:      signingKey,
		ExpirationHours: expirationHours,
	})
	t.Cleanup(func() { cfg = nil })
}

func TestGenerateAndValidateToken(t *testing.T) {
	initTestConfig(t, "test-secret", 1)

	token, err := GenerateToken("user@example.com", 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestValidateTokenExpired(t *testing.T) {
	initTestConfig(t, "test-secret", -1)

	token, err := GenerateToken("user@example.com", 7)
	require.NoError(t, err)

	_, err = ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenMalformed(t *testing.T) {
	initTestConfig(t, "test-secret", 1)

	_, err := ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestValidateTokenWrongKey(t *testing.T) {
	initTestConfig(t, "test-secret", 1)

	token, err := GenerateToken("user@example.com", 7)
	require.NoError(t, err)

	initTestConfig(t, "another-secret", 1)

	_, err = ValidateToken(token)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestGenerateTokenWithoutConfig(t *testing.T) {
	cfg = nil

	_, err := GenerateToken("user@example.com", 1)
	assert.Error(t, err)

	_, err = ValidateToken("whatever")
	assert.Error(t, err)
}
