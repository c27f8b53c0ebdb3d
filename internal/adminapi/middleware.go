package adminapi

import (
	"context"
	"net/http"
	"strings"
)

type claimsContextKeyType struct{}

var claimsContextKey = claimsContextKeyType{}

// getClaims returns the Claims stashed by JWTAuth, or nil if the request
// never went through it.
func getClaims(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := header[len(prefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

// JWTAuth rejects any request without a valid bearer token. Every admin
// endpoint behind it is available to every authenticated caller; there is
// no RequireAdmin/RequireRole layer because this API has only one implicit
// role.
func JWTAuth(svc *jwtService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorResponse("missing bearer token"))
				return
			}
			claims, err := svc.validate(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse(err.Error()))
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
