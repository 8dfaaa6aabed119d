// Package realip resolves the address of the caller when the server sits
// behind one or more reverse proxies.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type ctxKey struct{}

// Config controls which forwarding headers are honoured.
type Config struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP parsing.
	TrustProxy bool
	// TrustedProxies lists CIDR ranges or bare IPs of proxies we accept headers from.
	TrustedProxies []string
}

// Resolver extracts client addresses using a fixed set of trusted prefixes.
type Resolver struct {
	trust    bool
	prefixes []netip.Prefix
}

// NewResolver parses cfg once. Unparseable entries are skipped.
func NewResolver(cfg Config) *Resolver {
	res := &Resolver{trust: cfg.TrustProxy}
	if !cfg.TrustProxy {
		return res
	}
	for _, entry := range cfg.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			res.prefixes = append(res.prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			res.prefixes = append(res.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return res
}

// Middleware stores the resolved client address on the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	res := NewResolver(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ctxKey{}, res.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Resolve returns the client address for r. Forwarding headers are only
// consulted when the direct peer is trusted; the X-Forwarded-For chain is
// walked right to left and the first untrusted hop wins.
func (res *Resolver) Resolve(r *http.Request) string {
	peer := hostOnly(r.RemoteAddr)
	if !res.trust || !res.trusted(peer) {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !res.trusted(hop) {
			return hop
		}
	}
	// every hop is a proxy we know; the leftmost is the origin
	if first := strings.TrimSpace(hops[0]); first != "" {
		return first
	}
	return peer
}

func (res *Resolver) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range res.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address stored by Middleware, or the peer address
// when the middleware did not run.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ctxKey{}).(string); ok && ip != "" {
		return ip
	}
	return hostOnly(r.RemoteAddr)
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
