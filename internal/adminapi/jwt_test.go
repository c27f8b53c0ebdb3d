package adminapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := newJWTService("too-short")
	assert.ErrorIs(t, err, errInvalidSecretLength)
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	svc, err := newJWTService("test-secret-key-that-is-at-least-32-chars")
	require.NoError(t, err)

	token, expiresAt, err := svc.issue("alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	svc, err := newJWTService("test-secret-key-that-is-at-least-32-chars")
	require.NoError(t, err)

	token, _, err := svc.issue("alice")
	require.NoError(t, err)

	_, err = svc.validate(token + "x")
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	svc, err := newJWTService("test-secret-key-that-is-at-least-32-chars")
	require.NoError(t, err)
	other, err := newJWTService("a-totally-different-secret-key-32-chars")
	require.NoError(t, err)

	token, _, err := svc.issue("alice")
	require.NoError(t, err)

	_, err = other.validate(token)
	assert.ErrorIs(t, err, errInvalidToken)
}
