package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/virtrpcd/virtrpcd/internal/auth/credstore"
	"github.com/virtrpcd/virtrpcd/internal/transport"
)

type fakeSessionLister struct{ sessions []transport.SessionInfo }

func (f *fakeSessionLister) Sessions() []transport.SessionInfo { return f.sessions }

func newTestRouter(t *testing.T) (http.Handler, credstore.Store, *jwtService) {
	t.Helper()
	store := credstore.NewMemory()
	jwt, err := newJWTService("test-secret-key-that-is-at-least-32-chars")
	require.NoError(t, err)
	lister := &fakeSessionLister{sessions: []transport.SessionInfo{
		{RemoteAddr: "10.0.0.5:4500", AcceptedAt: time.Now()},
	}}
	return newRouter(jwt, store, lister), store, jwt
}

func putUser(t *testing.T, store credstore.Store, username, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), &credstore.Record{Username: username, PasswordHash: string(hash)}))
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	router, _, _ := newTestRouter(t)
	body, _ := json.Marshal(loginRequest{Username: "nobody", Password: "whatever"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginSucceedsAndIssuesUsableToken(t *testing.T) {
	router, store, _ := newTestRouter(t)
	putUser(t, store, "admin", "correct-password")

	body, _ := json.Marshal(loginRequest{Username: "admin", Password: "correct-password"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeResponse(t, rr)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var login loginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	require.NotEmpty(t, login.Token)

	sessReq := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	sessReq.Header.Set("Authorization", "Bearer "+login.Token)
	sessRR := httptest.NewRecorder()
	router.ServeHTTP(sessRR, sessReq)
	assert.Equal(t, http.StatusOK, sessRR.Code)
}

func TestSessionsRequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessionsRejectsInvalidToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func bearerFor(t *testing.T, jwt *jwtService, username string) string {
	t.Helper()
	token, _, err := jwt.issue(username)
	require.NoError(t, err)
	return token
}

func TestCreateAndDeleteUser(t *testing.T) {
	router, store, jwt := newTestRouter(t)
	token := bearerFor(t, jwt, "admin")

	body, _ := json.Marshal(createUserRequest{Username: "alice", Password: "wonderland42"})
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	rec, err := store.Lookup(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)

	delReq := httptest.NewRequest(http.MethodDelete, "/users/alice", nil)
	delReq.Header.Set("Authorization", "Bearer "+token)
	delRR := httptest.NewRecorder()
	router.ServeHTTP(delRR, delReq)
	require.Equal(t, http.StatusOK, delRR.Code)

	_, err = store.Lookup(context.Background(), "alice")
	assert.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestCreateUserRejectsShortPassword(t *testing.T) {
	router, _, jwt := newTestRouter(t)
	token := bearerFor(t, jwt, "admin")

	body, _ := json.Marshal(createUserRequest{Username: "bob", Password: "short"})
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
