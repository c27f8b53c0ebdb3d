package clicreds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutSessionReturnsErrNotLoggedIn(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	sess := &Session{
		ServerURL: "http://127.0.0.1:16510",
		Username:  "admin",
		Token:     "abc.def.ghi",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, Save(sess))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, sess.ServerURL, loaded.ServerURL)
	assert.Equal(t, sess.Username, loaded.Username)
	assert.Equal(t, sess.Token, loaded.Token)
	assert.False(t, loaded.IsExpired())
}

func TestIsExpired(t *testing.T) {
	expired := &Session{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, expired.IsExpired())

	fresh := &Session{ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, fresh.IsExpired())

	zero := &Session{}
	assert.True(t, zero.IsExpired())
}
