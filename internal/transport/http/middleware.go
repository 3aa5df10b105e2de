package http

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"klasquiz-service/internal/auth"
)

type contextKey string

const docentKey contextKey = "docent"

// requestToken pulls a token from the Authorization header or, for
// websocket clients that cannot set headers, the token query parameter.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// requireDocent rejects requests without a valid docent token and stores
// the claims on the request context.
func requireDocent(tokens *auth.Manager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "geen token"})
			return
		}
		claims, err := tokens.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "ongeldig token"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), docentKey, claims)))
	}
}

// docentFrom returns the authenticated docent claims, or nil on
// anonymous requests.
func docentFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(docentKey).(*auth.Claims)
	return claims
}

// logRequests writes one line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
