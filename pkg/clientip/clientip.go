package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP from r.RemoteAddr only (no proxy
// headers). Use for rate limiting when traffic reaches the app directly.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// Resolver picks the client IP for blacklist checks. With TrustProxy set, the
// first valid address in X-Forwarded-For, then X-Real-IP, wins over RemoteAddr.
type Resolver struct {
	TrustProxy bool
}

// ClientIP resolves the address used for IP blacklist checks and audit
// records. Returns "" when nothing parses as an IP.
func (res Resolver) ClientIP(r *http.Request) string {
	if res.TrustProxy {
		// Take the first IP if there are multiple
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := normalize(first); ip != "" {
				return ip
			}
		}
		if ip := normalize(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return normalize(RealClientIP(r))
}

// normalize returns the canonical text form of s, or "" if s isn't an IP.
func normalize(s string) string {
	ip := net.ParseIP(strings.Trim(strings.TrimSpace(s), "[]"))
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
