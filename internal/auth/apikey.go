package auth

import (
	"net/http"
	"strings"
)

// KeyFromRequest extracts an API key from the X-API-Key header or, failing
// that, a Bearer Authorization header.
func KeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return ""
}
