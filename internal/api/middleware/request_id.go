// Package middleware provides HTTP middleware for the DevOps application.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLength caps client supplied IDs so they cannot bloat logs.
const maxRequestIDLength = 128

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

type requestIDKey struct{}

// RequestID propagates a well-formed X-Request-Id from the client or
// generates a new one, and stores it in the request context and the response
// header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !isValidRequestID(requestID) {
			requestID = newRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func isValidRequestID(id string) bool {
	return id != "" && len(id) <= maxRequestIDLength && validRequestID.MatchString(id)
}

// newRequestID returns a time-ordered ID so log lines sort by arrival.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "req_" + id.String()
}
