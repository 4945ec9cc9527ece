package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Username:  "operator",
		Password:  "hunter2",
		JWTSecret: "test-secret-test-secret-test-secret",
	}
}

func TestAuthenticateSucceedsWithCorrectCredentials(t *testing.T) {
	a := New(testConfig())
	token, err := a.Authenticate("operator", "hunter2", "1.2.3.4:5555")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Sub)
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	a := New(testConfig())
	_, err := a.Authenticate("operator", "wrong", "1.2.3.4:5555")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// TestAuthenticateRateLimitsAfterMaxFailures covers the sliding-window
// lockout: once MaxLoginAttempts failures land from the same IP within the
// window, further attempts are rejected even with the correct password.
func TestAuthenticateRateLimitsAfterMaxFailures(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLoginAttempts = 2
	cfg.LoginWindowSeconds = 60
	a := New(cfg)

	for i := 0; i < 2; i++ {
		_, err := a.Authenticate("operator", "wrong", "9.9.9.9:1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := a.Authenticate("operator", "hunter2", "9.9.9.9:1")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Greater(t, a.RemainingLockout("9.9.9.9:1"), time.Duration(0))
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	a := New(testConfig())
	a.config.TokenTTL = -1 * time.Second

	token, err := a.CreateToken("operator")
	require.NoError(t, err)

	_, err = a.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenRejectsTamperedSignature(t *testing.T) {
	a := New(testConfig())
	token, err := a.CreateToken("operator")
	require.NoError(t, err)

	tampered := token[:len(token)-1] + "x"
	_, err = a.ValidateToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsMalformedInput(t *testing.T) {
	a := New(testConfig())
	_, err := a.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
