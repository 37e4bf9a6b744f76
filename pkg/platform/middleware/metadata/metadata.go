// Package metadata carries the caller's network address through the request context.
package metadata

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type contextKeyClientIP struct{}

// MaxForwardedLength caps the forwarding headers we are willing to parse.
const MaxForwardedLength = 500

// TrustedProxies lists the networks whose forwarding headers are believed.
// The zero value trusts nobody, so the client IP is always the peer address.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts CIDR ranges and bare addresses.
func ParseTrustedProxies(values []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func (t TrustedProxies) trusts(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range t {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientMetadata resolves the client IP once and stores it in the context.
// Apply it before anything that keys on the caller, such as rate limiting.
func ClientMetadata(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientIP(r.Context(), ClientIPFromRequest(r, trusted))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(contextKeyClientIP{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects a client IP. Useful for tests that skip the middleware.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyClientIP{}, ip)
}

// ClientIPFromRequest extracts the client IP. Proxy headers count only when
// the peer is a trusted proxy; X-Forwarded-For is then read right to left and
// the first hop outside the trusted set is the client.
func ClientIPFromRequest(r *http.Request, trusted TrustedProxies) string {
	peer := remoteHost(r.RemoteAddr)
	if peer == "" {
		return "unknown"
	}
	if !trusted.trusts(peer) {
		return peer
	}

	if xff := strings.Join(r.Header.Values("X-Forwarded-For"), ","); xff != "" {
		if len(xff) > MaxForwardedLength {
			return peer
		}
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if _, err := netip.ParseAddr(hop); err != nil {
				return peer
			}
			if !trusted.trusts(hop) || i == 0 {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && len(xri) <= MaxForwardedLength {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func remoteHost(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
