package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/grabvid/grabvid/internal/auth"
)

type contextKey string

const (
	userUUIDKey contextKey = "user_uuid"
	premiumKey  contextKey = "premium"
)

// UserUUID returns the authenticated caller's UUID, or "" for anonymous.
func UserUUID(r *http.Request) string {
	if v, ok := r.Context().Value(userUUIDKey).(string); ok {
		return v
	}
	return ""
}

// IsPremium reports whether the caller authenticated with a premium key.
func IsPremium(r *http.Request) bool {
	v, _ := r.Context().Value(premiumKey).(bool)
	return v
}

// bearerToken extracts a Bearer credential, falling back to the session
// cookie so browser callers work without custom headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}

// SessionAuth resolves the caller's session. Requests without a valid
// session pass through anonymous; endpoints that demand identity enforce
// it via their fulfillment policy or RequireUser.
func SessionAuth(verifier *auth.SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerToken(r); tok != "" {
				if userUUID, err := verifier.Verify(tok); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), userUUIDKey, userUUID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that did not resolve to a signed-in user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserUUID(r) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":-1,"message":"login required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AdminKeyAuth validates the static admin API key with a constant-time
// comparison. An empty configured key disables the admin surface.
func AdminKeyAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = bearerToken(r)
			}

			if adminKey == "" || key == "" ||
				subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"code":-1,"message":"invalid API key"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyAuth validates provisioned v1 API keys. Premium enforcement is
// left to the handler so the error can carry an upgrade hint.
func APIKeyAuth(keys *auth.APIKeyService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := bearerToken(r)
			if presented == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"code":-1,"message":"Missing API key. Please include Authorization header with \"Bearer YOUR_API_KEY\""}`))
				return
			}

			key, err := keys.Verify(r.Context(), presented)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"code":-1,"message":"Invalid API key"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userUUIDKey, key.UserUUID)
			ctx = context.WithValue(ctx, premiumKey, key.Premium)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
