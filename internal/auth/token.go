// Package auth resolves session credentials to user ids.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	CookieName = "token"
	QueryParam = "token"

	userIdClaim = "user-id"
	expClaim    = "exp"
)

var ErrInvalidCredential = errors.New("invalid credential")

// Resolver maps a credential to the id of the user it was issued for.
type Resolver interface {
	Resolve(credential string) (int, error)
}

// TokenIssuer issues and verifies HS256 signed session tokens.
type TokenIssuer struct {
	key []byte
	now func() time.Time
}

func NewTokenIssuer(key []byte) *TokenIssuer {
	return &TokenIssuer{key: key, now: time.Now}
}

func (ti *TokenIssuer) Issue(userId int, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    ti.now().Add(ttl).Unix(),
	})

	return token.SignedString(ti.key)
}

func (ti *TokenIssuer) Resolve(credential string) (int, error) {
	if credential == "" {
		return 0, ErrInvalidCredential
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return ti.key, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidCredential
	}

	if _, ok := claims[expClaim]; !ok {
		return 0, fmt.Errorf("%w: missing expiry", ErrInvalidCredential)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok || userId <= 0 {
		return 0, fmt.Errorf("%w: invalid user id claim", ErrInvalidCredential)
	}

	return int(userId), nil
}

// FromRequest returns the credential presented with r, looking at the
// token cookie, then the token query parameter, then a bearer
// Authorization header.
func FromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	if v := r.URL.Query().Get(QueryParam); v != "" {
		return v
	}

	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}

	return ""
}
