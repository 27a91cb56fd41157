package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

type ctxKeyUserID struct{}

// UserIDFromContext returns the caller resolved by RequireUser.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(int64)
	return v, ok
}

// WithUserID injects a caller id into ctx. Useful for testing.
func WithUserID(ctx context.Context, uid int64) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

// JWTVerifier accepts HS256 tokens whose subject is a numeric user id.
// With no secret configured every token is rejected.
type JWTVerifier struct {
	Secret []byte
}

var errNoSecret = errors.New("jwt secret not configured")

func (v JWTVerifier) Parse(tokenString string) (int64, error) {
	if len(v.Secret) == 0 {
		return 0, errNoSecret
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || uid <= 0 {
		return 0, errors.New("subject is not a user id")
	}
	return uid, nil
}

// Sign issues a token for uid. Used by tests and local tooling.
func (v JWTVerifier) Sign(uid int64, claims jwt.RegisteredClaims) (string, error) {
	if len(v.Secret) == 0 {
		return "", errNoSecret
	}
	claims.Subject = strconv.FormatInt(uid, 10)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

// RequireUser validates the Bearer token and injects the user id into context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			scheme, token, ok := strings.Cut(authz, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
				return
			}
			uid, err := verifier.Parse(strings.TrimSpace(token))
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}
