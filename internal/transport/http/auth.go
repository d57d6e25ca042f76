package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

// TokenVerifier turns a bearer token into a verified actor.
type TokenVerifier interface {
	Verify(raw string) (domain.Actor, error)
}

type actorKey struct{}

func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// Authenticate verifies the bearer token when one is sent and stores the
// actor in the request context. Requests without a token pass through;
// handlers that need an actor reject them.
//
// Browsers cannot set headers on EventSource, so an access_token query
// parameter is accepted as well.
func Authenticate(v TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := v.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
		return domain.Actor{}, false
	}
	return actor, true
}
