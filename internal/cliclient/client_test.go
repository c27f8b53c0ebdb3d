package cliclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginDecodesTokenFromEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": "2026-01-01T00:00:00Z",
			"data":      map[string]any{"token": "xyz", "expires_at": "2026-01-01T01:00:00Z"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	result, err := client.Login("admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "xyz", result.Token)
}

func TestLoginSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "error": "invalid credentials"})
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.Login("admin", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid credentials", apiErr.Err)
}

func TestSessionsSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   []map[string]any{{"remote_addr": "10.0.0.1:4500", "accepted_at": "2026-01-01T00:00:00Z"}},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	client.SetToken("tok123")
	sessions, err := client.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "10.0.0.1:4500", sessions[0].RemoteAddr)
}
