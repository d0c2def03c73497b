package httpapi

import (
	"context"
	"net/http"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/logger"
)

// Identity headers supplied by the upstream authentication proxy.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type contextKey string

const identityKey contextKey = "identity"

// identityMiddleware extracts the caller identity from the request
// headers and records it in the user store so relationship endpoints
// can resolve it later. Requests without a complete, valid identity
// never reach a handler.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := domain.Identity{
			UserID: r.Header.Get(HeaderUserID),
			Role:   domain.Role(r.Header.Get(HeaderUserRole)),
		}
		if caller.UserID == "" || !caller.Role.Valid() {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid identity headers"})
			return
		}

		// Best effort; a store hiccup here surfaces on the operation
		// that actually needs the user row.
		if err := s.identities.Ensure(r.Context(), caller); err != nil {
			logger.Warn("Recording identity %s: %v", caller.UserID, err)
		}

		ctx := context.WithValue(r.Context(), identityKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFrom returns the identity stored by identityMiddleware.
func callerFrom(r *http.Request) domain.Identity {
	caller, _ := r.Context().Value(identityKey).(domain.Identity)
	return caller
}
