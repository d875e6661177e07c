package middleware

import "net/http"

// ContentTypeJSON defaults the response Content-Type to UTF-8 JSON. Handlers
// may still override it, e.g. for problem+json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		}
		next.ServeHTTP(w, r)
	})
}
