package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/workshop-market/internal/apperr"
	"github.com/Clark-Hu/workshop-market/internal/domain"
)

type actorKey struct{}

// Claims is the token payload: the subject is the actor id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// actorMiddleware attaches the caller to the request context. Requests
// without a bearer token proceed as anonymous; a token that fails
// verification is rejected.
func actorMiddleware(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				writeUnauthorized(w, "Missing or invalid authentication information")
				return
			}

			var claims Claims
			token, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, keyFunc)
			if err != nil || !token.Valid || claims.Subject == "" {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			actor := domain.Actor{ID: claims.Subject, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// actorFrom returns the caller, or the anonymous actor.
func actorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(domain.Actor)
	return actor
}

// requireActor fails with 401 for anonymous callers.
func requireActor(ctx context.Context) (domain.Actor, error) {
	actor := actorFrom(ctx)
	if actor.Anonymous() {
		return actor, apperr.Unauthorized("Authentication required")
	}
	return actor, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"` + message + `"}`))
}
