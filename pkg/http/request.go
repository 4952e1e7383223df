package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPConfig resolves the client address of a request. X-Forwarded-For and
// X-Real-IP are honored only when the direct peer falls inside one of the
// trusted proxy ranges; otherwise headers are attacker-controlled and the
// peer address wins.
type IPConfig struct {
	trusted []*net.IPNet
}

// NewIPConfig parses the trusted proxy CIDR ranges. An empty list is valid
// and means no forwarding headers are ever trusted.
func NewIPConfig(trustedProxies []string) (*IPConfig, error) {
	cfg := &IPConfig{}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		cfg.trusted = append(cfg.trusted, ipNet)
	}
	return cfg, nil
}

// ClientIP returns the client address for the request. A nil config behaves
// like one with no trusted proxies.
func (c *IPConfig) ClientIP(r *http.Request) string {
	peer := peerAddr(r)

	if c == nil || !c.isTrustedProxy(peer) {
		return peer
	}

	// X-Forwarded-For may hold a chain; the first valid entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return peer
}

func (c *IPConfig) isTrustedProxy(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, ipNet := range c.trusted {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

func peerAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
