package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/slot-engine/booking"
)

// IdentityHeader carries the caller identity when no JWT secret is configured.
const IdentityHeader = "X-Identity"

type identityKey struct{}

// Authenticator resolves the caller identity of each request.
//
// With a secret, the identity is the "sub" claim of an HS256 bearer token.
// Without one, the X-Identity header is trusted as-is (development only).
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token whose subject is id.
func (a *Authenticator) IssueToken(id booking.Identity, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(id),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware attaches the identity to the request context. Requests without
// credentials pass through anonymous; bad credentials are rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.identify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid credentials", err)
			return
		}
		if id != "" {
			r = r.WithContext(context.WithValue(r.Context(), identityKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) identify(r *http.Request) (booking.Identity, error) {
	if len(a.secret) == 0 {
		return booking.Identity(strings.TrimSpace(r.Header.Get(IdentityHeader))), nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("authorization header must use the Bearer scheme")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return booking.Identity(claims.Subject), nil
}

// IdentityFrom returns the caller identity attached by Middleware.
func IdentityFrom(ctx context.Context) (booking.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(booking.Identity)
	return id, ok && id != ""
}

// requireIdentity rejects anonymous requests to endpoints that act on
// behalf of a caller.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Caller identity required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
