package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/virtrpcd/virtrpcd/internal/auth/credstore"
	"github.com/virtrpcd/virtrpcd/internal/logger"
)

var validate = validator.New()

type handlers struct {
	jwt      *jwtService
	store    credstore.Store
	sessions sessionLister
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(map[string]string{"status": "healthy"}))
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := h.store.Lookup(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, credstore.ErrNotFound) {
			logger.Error("credstore lookup failed", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, errorResponse("invalid credentials"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse("invalid credentials"))
		return
	}

	token, expiresAt, err := h.jwt.issue(rec.Username)
	if err != nil {
		logger.Error("failed to issue admin token", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to issue token"))
		return
	}

	writeJSON(w, http.StatusOK, okResponse(loginResponse{Token: token, ExpiresAt: expiresAt}))
}

type sessionView struct {
	RemoteAddr string    `json:"remote_addr"`
	AcceptedAt time.Time `json:"accepted_at"`
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.Sessions()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{RemoteAddr: s.RemoteAddr, AcceptedAt: s.AcceptedAt})
	}
	writeJSON(w, http.StatusOK, okResponse(views))
}

type createUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to create user"))
		return
	}

	rec := &credstore.Record{
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.Put(r.Context(), rec); err != nil {
		logger.Error("credstore put failed", "error", err, "username", req.Username)
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to create user"))
		return
	}

	writeJSON(w, http.StatusCreated, okResponse(map[string]string{"username": req.Username}))
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing user name"))
		return
	}
	if err := h.store.Delete(r.Context(), name); err != nil {
		logger.Error("credstore delete failed", "error", err, "username", name)
		writeJSON(w, http.StatusInternalServerError, errorResponse("failed to delete user"))
		return
	}
	writeJSON(w, http.StatusOK, okResponse(map[string]string{"username": name}))
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("malformed request body"))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return false
	}
	return true
}
