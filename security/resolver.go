// Package security derives the client identifier used as the rate-limit
// bucket key from forwarded-address headers and the connection's peer.
package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// Anonymous is the identifier given to every client whose address cannot be
// determined. All such clients share a single rate-limit bucket.
const Anonymous = "anonymous"

// defaultHeaderPriority is the ordered list of headers inspected when the
// caller does not provide an explicit HeaderPriority.
var defaultHeaderPriority = []string{"X-Forwarded-For"}

// Config configures a [ClientResolver].
type Config struct {
	// TrustedProxies lists CIDRs (or bare IPs) of reverse proxies allowed to
	// set forwarding headers. When empty, forwarding headers are always
	// honoured, which is only safe behind a proxy that overwrites them.
	TrustedProxies []string

	// HeaderPriority lists the headers to inspect, in order. Defaults to
	// X-Forwarded-For.
	HeaderPriority []string
}

// ClientResolver maps a request to its client identifier.
type ClientResolver struct {
	trustedProxies []netip.Prefix
	headerPriority []string
}

// NewClientResolver parses cfg. It returns an error if a trusted proxy entry
// is invalid.
func NewClientResolver(cfg Config) (*ClientResolver, error) {
	proxies, err := parsePrefixes(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("security: invalid trusted proxy: %w", err)
	}

	hp := cfg.HeaderPriority
	if len(hp) == 0 {
		hp = defaultHeaderPriority
	}

	return &ClientResolver{
		trustedProxies: proxies,
		headerPriority: hp,
	}, nil
}

// Resolve returns the client identifier for an HTTP request.
//
// When forwarding headers are honoured (no trusted proxies configured, or the
// peer is one of them) the first header in priority order wins: its left-most
// valid IP, or its trimmed raw value if it holds no IP. Without a usable
// header the result is [Anonymous]. When the peer is not a trusted proxy its
// own address is used.
func (c *ClientResolver) Resolve(r *http.Request) string {
	peerAddr, peerOK := addrFromString(r.RemoteAddr)
	return c.resolve(peerAddr, peerOK, func(key string) []string {
		return r.Header.Values(key)
	})
}

// ResolveMD is [ClientResolver.Resolve] for gRPC calls, reading headers from
// md and the peer address from ctx.
func (c *ClientResolver) ResolveMD(ctx context.Context, md metadata.MD) string {
	peerAddr, peerOK := peerAddrFromContext(ctx)
	return c.resolve(peerAddr, peerOK, func(key string) []string {
		return md.Get(key)
	})
}

func (c *ClientResolver) resolve(peerAddr netip.Addr, peerOK bool, lookup func(string) []string) string {
	honour := len(c.trustedProxies) == 0 || (peerOK && isTrustedProxy(peerAddr, c.trustedProxies))
	if !honour {
		if peerOK {
			return peerAddr.String()
		}
		return Anonymous
	}
	if id, ok := idFromHeaders(lookup, c.headerPriority); ok {
		return id
	}
	return Anonymous
}

// peerAddrFromContext extracts the IP address from the gRPC peer information
// stored in ctx.
func peerAddrFromContext(ctx context.Context) (netip.Addr, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return netip.Addr{}, false
	}
	return addrFromString(p.Addr.String())
}

// addrFromString parses "host:port" or a bare IP into a netip.Addr.
func addrFromString(s string) (netip.Addr, bool) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// isTrustedProxy reports whether addr falls within any of the given prefixes.
func isTrustedProxy(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// idFromHeaders walks the header keys in priority order. For the first
// present, non-empty header it returns the left-most valid IP of its
// comma-separated entries, or the trimmed raw value when none parses.
func idFromHeaders(lookup func(string) []string, priority []string) (string, bool) {
	for _, key := range priority {
		vals := lookup(key)
		raw := strings.TrimSpace(strings.Join(vals, ","))
		if raw == "" || strings.Trim(raw, ", ") == "" {
			continue
		}
		for _, v := range vals {
			for part := range strings.SplitSeq(v, ",") {
				trimmed := strings.TrimSpace(part)
				if trimmed == "" {
					continue
				}
				if ip, err := netip.ParseAddr(trimmed); err == nil {
					return ip.Unmap().String(), true
				}
			}
		}
		return raw, true
	}
	return "", false
}

// parsePrefixes parses a slice of CIDR strings into netip.Prefix values.
// A plain IP address (without a prefix length) is treated as a single-host
// prefix (/32 for IPv4, /128 for IPv6).
func parsePrefixes(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			addr, addrErr := netip.ParseAddr(s)
			if addrErr != nil {
				return nil, fmt.Errorf("%q: %w", s, err)
			}
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
		out = append(out, p.Masked())
	}
	return out, nil
}
