package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/virtrpcd/virtrpcd/internal/auth/credstore"
	"github.com/virtrpcd/virtrpcd/internal/logger"
	"github.com/virtrpcd/virtrpcd/internal/transport"
)

// sessionLister is the subset of transport.Server the sessions handler needs.
type sessionLister interface {
	Sessions() []transport.SessionInfo
}

// newRouter builds the chi router: a flat health/login/sessions/users
// surface, no nested resource tree, with a single JWTAuth gate rather than
// per-route role checks.
func newRouter(jwt *jwtService, store credstore.Store, sessions sessionLister) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handlers{jwt: jwt, store: store, sessions: sessions}

	r.Get("/healthz", h.healthz)
	r.Post("/auth/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(JWTAuth(jwt))
		r.Get("/sessions", h.listSessions)
		r.Post("/users", h.createUser)
		r.Delete("/users/{name}", h.deleteUser)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("admin API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		if strings.HasPrefix(r.URL.Path, "/healthz") {
			logger.Debug("admin API request completed", logArgs...)
		} else {
			logger.Info("admin API request completed", logArgs...)
		}
	})
}
