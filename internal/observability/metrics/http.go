package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Middleware records request counts and latency. Requests are labelled with
// the matched chi route pattern; unmatched requests fall back to
// normalizePath so scanners cannot inflate label cardinality.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := routeLabel(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath collapses dynamic path segments to keep label cardinality
// bounded. For example:
//
//	/etherscan/api -> /{provider}/api
//	/etherscan/constructor_args/0xabc... -> /{provider}/constructor_args/{address}
func normalizePath(path string) string {
	switch path {
	case "/health", "/healthz", "/readyz", "/metrics", "/stats":
		return path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "api":
		return "/{provider}/api"
	case len(parts) == 3 && parts[1] == "constructor_args" && isLikelyAddress(parts[2]):
		return "/{provider}/constructor_args/{address}"
	case len(parts) == 3 && parts[1] == "constructor_args":
		return "/{provider}/constructor_args/{invalid}"
	}
	return "other"
}

// isLikelyAddress returns true for 0x-prefixed 40-digit hex strings
func isLikelyAddress(segment string) bool {
	if len(segment) != 42 || (segment[:2] != "0x" && segment[:2] != "0X") {
		return false
	}
	return isHex(segment[2:])
}

// isHex returns true if string is hexadecimal (supports both upper and lowercase)
func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return len(s) > 0
}
