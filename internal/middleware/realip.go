package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIPMiddleware sets X-Real-IP to the client address used for rate
// limiting and access logs. Forwarded headers are honoured only when the
// direct peer is a trusted proxy; otherwise any client-supplied X-Real-IP is
// overwritten with the peer address.
type RealIPMiddleware struct {
	trusted []netip.Prefix
}

// NewRealIPMiddleware accepts proxy addresses ("192.168.1.1") and CIDRs
// ("10.0.0.0/8"). Unparseable entries are ignored.
func NewRealIPMiddleware(trustedProxies []string) *RealIPMiddleware {
	m := &RealIPMiddleware{}
	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(proxy); err == nil {
			m.trusted = append(m.trusted, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(proxy); err == nil {
			addr = addr.Unmap()
			m.trusted = append(m.trusted, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return m
}

func (m *RealIPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := m.clientIP(r); ip != "" {
			r.Header.Set("X-Real-IP", ip)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RealIPMiddleware) clientIP(r *http.Request) string {
	peer := peerAddr(r.RemoteAddr)
	if !m.isTrusted(peer) {
		return peer
	}

	// Cloudflare first, then the left-most X-Forwarded-For hop.
	if ip, ok := validIP(r.Header.Get("CF-Connecting-IP")); ok {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, ok := validIP(first); ok {
			return ip
		}
	}
	return peer
}

func (m *RealIPMiddleware) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range m.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func validIP(s string) (string, bool) {
	s = strings.TrimSpace(s)
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

// peerAddr strips the port from RemoteAddr when there is one.
func peerAddr(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
