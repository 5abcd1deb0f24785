package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware rejects requests without a valid bearer token and stores the
// claims of accepted ones in the request context. Preflight requests and
// excluded paths pass through untouched.
func Middleware(v TokenValidator, excluded []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isExcluded(r.URL.Path, excluded) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, "missing Authorization header")
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "invalid Authorization format, expected: Bearer <token>")
				return
			}

			claims, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				slog.Debug("Token rejected", "path", r.URL.Path, "error", err)
				msg := ErrUnauthorized.Error()
				if errors.Is(err, ErrTokenExpired) {
					msg = ErrTokenExpired.Error()
				}
				writeUnauthorized(w, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func isExcluded(path string, excluded []string) bool {
	for _, p := range excluded {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="a2achat"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": msg},
	})
}
