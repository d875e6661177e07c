package middleware

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/devopsapp/devops-app/internal/api/models"
)

const (
	// CSRFCookieName holds the signed token.
	CSRFCookieName = "_csrf"
	// CSRFHeader carries the masked token: set on responses, required on
	// unsafe requests.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFConfig holds configuration for CSRF validation.
type CSRFConfig struct {
	Enabled bool
	// Key is the cookie validation key. The cookie signing key is derived
	// from it.
	Key string
	// Secure marks the token cookie Secure.
	Secure bool
}

// CSRF returns a gorilla/csrf guard. Every response carries a fresh masked
// token in the X-CSRF-Token header; unsafe methods must send one back
// alongside the _csrf cookie or receive a 400 problem. When cfg.Enabled is
// false the middleware is a no-op.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	authKey := sha256.Sum256([]byte(cfg.Key))
	protect := csrf.Protect(authKey[:],
		csrf.CookieName(CSRFCookieName),
		csrf.RequestHeader(CSRFHeader),
		csrf.Path("/"),
		csrf.Secure(cfg.Secure),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailed)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(exposeCSRFToken(next))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isHTTPS(r) {
				// Referer checks only apply to TLS requests
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func exposeCSRFToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(CSRFHeader, csrf.Token(r))
		next.ServeHTTP(w, r)
	})
}

func csrfFailed(w http.ResponseWriter, r *http.Request) {
	models.NewBadRequest(GetRequestID(r.Context()), "Unable to verify your data submission.", nil).
		WithInstance(r.URL.Path).
		Write(w)
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
