package adminapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload minted by POST /auth/login. The admin surface
// has no roles or groups: any credstore-authenticated caller may use every
// admin endpoint, so Claims carries only the identity the caller logged in
// as.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

var (
	errInvalidToken        = errors.New("invalid token")
	errExpiredToken        = errors.New("token has expired")
	errInvalidSecretLength = errors.New("jwt secret must be at least 32 characters")
)

// jwtService signs and validates the bearer tokens accepted by JWTAuth.
type jwtService struct {
	secret   string
	issuer   string
	lifetime time.Duration
}

func newJWTService(secret string) (*jwtService, error) {
	if len(secret) < 32 {
		return nil, errInvalidSecretLength
	}
	return &jwtService{secret: secret, issuer: "virtrpcd", lifetime: time.Hour}, nil
}

func (s *jwtService) issue(username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.lifetime)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *jwtService) validate(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errExpiredToken
		}
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}
