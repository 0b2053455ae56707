package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Caller is the identity attached to a request. The engine consumes
// only the owner identifier and the admin flag.
type Caller struct {
	ClientID string
	IsAdmin  bool
}

// CallerID implements the query engine's caller contract.
func (c *Caller) CallerID() string { return c.ClientID }

// Admin implements the query engine's caller contract.
func (c *Caller) Admin() bool { return c.IsAdmin }

// Anonymous is the caller used for requests without credentials:
// non-administrative, with no owner identity.
var Anonymous = &Caller{}

// ParseToken validates an HMAC-signed bearer token and extracts the
// caller from its client_id / is_admin claims.
func ParseToken(tokenString string, secret []byte) (*Caller, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	caller := &Caller{}
	if id, ok := claims["client_id"].(string); ok {
		caller.ClientID = id
	}
	if admin, ok := claims["is_admin"].(bool); ok {
		caller.IsAdmin = admin
	}
	return caller, nil
}

type contextKey struct{}

// FromContext returns the caller attached by Middleware, or Anonymous.
func FromContext(ctx context.Context) *Caller {
	if c, ok := ctx.Value(contextKey{}).(*Caller); ok {
		return c
	}
	return Anonymous
}

// Middleware resolves the Authorization bearer token into a Caller on
// the request context. Requests without a valid token proceed as
// Anonymous; authentication decisions beyond identity extraction are
// out of scope here.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := Anonymous
			header := r.Header.Get("Authorization")
			if raw, found := strings.CutPrefix(header, "Bearer "); found && len(secret) > 0 {
				if c, err := ParseToken(raw, secret); err == nil {
					caller = c
				}
			}
			ctx := context.WithValue(r.Context(), contextKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
