package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/punchlist/internal/identity"
)

// ActorHeader names the request header carrying the caller's member id.
const ActorHeader = "X-Member-ID"

// Identify stores the X-Member-ID header in the request context when it holds
// a valid UUID. Anything else is ignored and the request proceeds anonymously.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get(ActorHeader); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(identity.WithActor(r.Context(), id.String()))
			}
		}
		next.ServeHTTP(w, r)
	})
}
