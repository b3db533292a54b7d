// Package policy implements destination filtering: the single pure
// decision of whether a requested CONNECT destination is allowed, per
// §4.2 of the spec.
package policy

import (
	"context"
	"net"
	"regexp"

	"github.com/wisp-gateway/wispd/internal/config"
	"github.com/wisp-gateway/wispd/internal/wire"
)

// Allowed is the zero CloseReason: "permitted". Every deny reason is a
// non-zero wire.CloseReason.
const Allowed wire.CloseReason = 0

// Resolver is the subset of the DNS façade that policy needs: resolving a
// hostname to the address that will actually be classified for the
// loopback/private checks.
type Resolver interface {
	LookupIP(ctx context.Context, hostname string) (net.IP, error)
}

// StreamLister reports the existing stream population of a connection, so
// quotas can be enforced. A nil StreamLister skips the quota step entirely
// (§4.2 step 6 only runs "when a connection is provided").
type StreamLister interface {
	StreamCount() int
	StreamCountForHost(hostname string) int
}

var cgnatBlock = mustParseCIDR("100.64.0.0/10")

// reservedBlocks covers special-purpose IPv4 ranges beyond what net.IP's
// own classifiers (IsPrivate, IsLinkLocalUnicast, IsLoopback, ...) already
// catch: RFC 5737 documentation ranges and the 240.0.0.0/4 reserved block.
var reservedBlocks = []*net.IPNet{
	mustParseCIDR("192.0.2.0/24"),
	mustParseCIDR("198.51.100.0/24"),
	mustParseCIDR("203.0.113.0/24"),
	mustParseCIDR("240.0.0.0/4"),
}

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// IsStreamAllowed evaluates the destination policy for a CONNECT request.
// It returns Allowed (zero) when the destination may proceed, or the
// CloseReason to send otherwise. conn may be nil, in which case the quota
// step is skipped (used by tests and by any caller evaluating policy
// outside of a live connection).
func IsStreamAllowed(ctx context.Context, opts *config.Options, resolver Resolver, conn StreamLister, kind wire.StreamKind, hostname string, port uint16) wire.CloseReason {
	// 1. Kind gate.
	switch kind {
	case wire.StreamTCP:
		if !opts.AllowTCPStreams {
			return wire.CloseHostBlocked
		}
	case wire.StreamUDP:
		if !opts.AllowUDPStreams {
			return wire.CloseHostBlocked
		}
	}

	// 2. Hostname list: whitelist wins if configured, else blacklist.
	if len(opts.HostnameWhitelist) > 0 {
		if !anyMatch(opts.HostnameWhitelist, hostname) {
			return wire.CloseHostBlocked
		}
	} else if len(opts.HostnameBlacklist) > 0 {
		if anyMatch(opts.HostnameBlacklist, hostname) {
			return wire.CloseHostBlocked
		}
	}

	// 3. Port list: whitelist wins if configured, else blacklist.
	if len(opts.PortWhitelist) > 0 {
		if !anyPortMatch(opts.PortWhitelist, port) {
			return wire.CloseHostBlocked
		}
	} else if len(opts.PortBlacklist) > 0 {
		if anyPortMatch(opts.PortBlacklist, port) {
			return wire.CloseHostBlocked
		}
	}

	// 4. Direct-IP gate.
	literal := net.ParseIP(hostname)
	if literal != nil && !opts.AllowDirectIP {
		return wire.CloseHostBlocked
	}

	// 5. Resolved-IP gate. Resolution failure falls back to the literal
	// hostname treated as the address (the resolver façade itself returns
	// literal IPs unchanged, so this also covers the literal-but-allowed case).
	addr := literal
	if resolved, err := resolver.LookupIP(ctx, hostname); err == nil {
		addr = resolved
	}
	if addr != nil {
		if isLoopbackOrUnspecified(addr) && !opts.AllowLoopbackIPs {
			return wire.CloseHostBlocked
		}
		if isPrivateOrReserved(addr) && !opts.AllowPrivateIPs {
			return wire.CloseHostBlocked
		}
	}

	// 6. Quotas, only when a connection is provided.
	if conn != nil {
		if opts.StreamLimitTotal != -1 && conn.StreamCount() >= opts.StreamLimitTotal {
			return wire.CloseConnThrottled
		}
		if opts.StreamLimitPerHost != -1 && conn.StreamCountForHost(hostname) >= opts.StreamLimitPerHost {
			return wire.CloseConnThrottled
		}
	}

	return Allowed
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func anyPortMatch(ranges []config.PortRange, port uint16) bool {
	for _, r := range ranges {
		if r.Contains(port) {
			return true
		}
	}
	return false
}

func isLoopbackOrUnspecified(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsUnspecified()
}

func isPrivateOrReserved(ip net.IP) bool {
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil && ip4.Equal(net.IPv4bcast) {
		return true
	}
	if cgnatBlock.Contains(ip) {
		return true
	}
	for _, block := range reservedBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
