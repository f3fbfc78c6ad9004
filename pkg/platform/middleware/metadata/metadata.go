// Package metadata extracts client IP and User-Agent into the request
// context. Forwarded headers are only honored when the direct peer is a
// trusted proxy, so clients cannot spoof the identity the rate limiter and
// audit trail key on.
package metadata

import (
	"net/http"
	"net/netip"
	"strings"

	"palisade/pkg/requestcontext"
)

// Extractor resolves the real client IP behind a known set of proxies.
type Extractor struct {
	trusted []netip.Prefix
}

// NewExtractor builds an Extractor. trustedCIDRs lists the proxy networks
// whose X-Forwarded-For and X-Real-IP headers are believed; an empty list
// means forwarded headers are ignored entirely.
func NewExtractor(trustedCIDRs []string) (*Extractor, error) {
	e := &Extractor{}
	for _, cidr := range trustedCIDRs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, err
		}
		e.trusted = append(e.trusted, prefix)
	}
	return e, nil
}

// Middleware adds client IP and User-Agent to the request context for use by
// handlers and services. Apply early in the chain, before anything that keys
// on client identity.
func (e *Extractor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := e.ClientIPFromRequest(r)
		userAgent := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP from the request.
// Forwarded headers are consulted only when the direct peer is trusted.
func (e *Extractor) ClientIPFromRequest(r *http.Request) string {
	peer := remoteIP(r.RemoteAddr)

	if e.isTrusted(peer) {
		// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
		// The first entry is the original client as seen by the edge proxy.
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := xff
			if idx := strings.Index(xff, ","); idx != -1 {
				first = xff[:idx]
			}
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	if peer != "" {
		return peer
	}
	return "unknown"
}

func (e *Extractor) isTrusted(peer string) bool {
	if len(e.trusted) == 0 || peer == "" {
		return false
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	for _, prefix := range e.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteIP strips the port from a RemoteAddr value.
// For IPv6 the format is [::1]:port, for IPv4 it is 127.0.0.1:port.
func remoteIP(addr string) string {
	if addr == "" {
		return ""
	}
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().String()
	}
	// Some test servers set RemoteAddr without a port.
	if ip, err := netip.ParseAddr(addr); err == nil {
		return ip.String()
	}
	return addr
}
