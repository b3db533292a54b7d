// Package config defines the process-wide Options record (§6) shared
// read-only across all connections, and the functional options used to
// build it — the same pattern as the teacher's responder.Option /
// querier.Option.
package config

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"
)

// DNSMethod selects how the resolver façade resolves a miss.
type DNSMethod int

const (
	DNSMethodLookup DNSMethod = iota
	DNSMethodResolve
	DNSMethodCustom
)

// AddressOrder controls which address family the resolver prefers.
type AddressOrder int

const (
	AddressOrderVerbatim AddressOrder = iota
	AddressOrderIPv4First
	AddressOrderIPv6First
)

// PortRange is an inclusive port range; a single port is PortRange{P, P}.
type PortRange struct {
	Lo, Hi uint16
}

// Contains reports whether port falls within [Lo, Hi].
func (r PortRange) Contains(port uint16) bool { return port >= r.Lo && port <= r.Hi }

// SinglePort builds a PortRange matching exactly one port.
func SinglePort(p uint16) PortRange { return PortRange{Lo: p, Hi: p} }

// CustomResolveFunc is an injected hostname resolver, used verbatim when
// DNSMethod is DNSMethodCustom.
type CustomResolveFunc func(ctx context.Context, hostname string) (net.IP, error)

// Options is the process-wide configuration record. It is built once via
// New and is read-only for the lifetime of every connection it governs;
// reconfiguration only takes effect for connections started after a new
// Options is built.
type Options struct {
	HostnameBlacklist []*regexp.Regexp
	HostnameWhitelist []*regexp.Regexp

	PortBlacklist []PortRange
	PortWhitelist []PortRange

	AllowDirectIP    bool
	AllowPrivateIPs  bool
	AllowLoopbackIPs bool

	// StreamLimitPerHost and StreamLimitTotal are -1 to disable the quota.
	StreamLimitPerHost int
	StreamLimitTotal   int

	AllowTCPStreams bool
	AllowUDPStreams bool

	DNSTTL         time.Duration
	DNSMethod      DNSMethod
	DNSServers     []string
	DNSResultOrder AddressOrder
	DNSCustomFunc  CustomResolveFunc

	WispVersion int
	WispMOTD    string
	HasMOTD     bool
}

// Option configures an Options record under construction.
type Option func(*Options) error

// New builds an Options record from spec defaults (§6) plus the given
// options, in order.
func New(opts ...Option) (*Options, error) {
	o := &Options{
		AllowDirectIP:      true,
		AllowPrivateIPs:    false,
		AllowLoopbackIPs:   false,
		StreamLimitPerHost: -1,
		StreamLimitTotal:   -1,
		AllowTCPStreams:    true,
		AllowUDPStreams:    true,
		DNSTTL:             120 * time.Second,
		DNSMethod:          DNSMethodLookup,
		DNSResultOrder:     AddressOrderVerbatim,
		WispVersion:        2,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithHostnameBlacklist compiles patterns as regexes matched against the
// raw hostname string.
func WithHostnameBlacklist(patterns []string) Option {
	return func(o *Options) error {
		res, err := compileAll(patterns)
		if err != nil {
			return err
		}
		o.HostnameBlacklist = res
		return nil
	}
}

// WithHostnameWhitelist compiles patterns as regexes matched against the
// raw hostname string. A configured whitelist takes priority over any
// blacklist (§4.2 step 2).
func WithHostnameWhitelist(patterns []string) Option {
	return func(o *Options) error {
		res, err := compileAll(patterns)
		if err != nil {
			return err
		}
		o.HostnameWhitelist = res
		return nil
	}
}

// WithPortBlacklist sets the blocked port/port-range list.
func WithPortBlacklist(ranges []PortRange) Option {
	return func(o *Options) error {
		o.PortBlacklist = ranges
		return nil
	}
}

// WithPortWhitelist sets the allowed port/port-range list. A configured
// whitelist takes priority over any blacklist.
func WithPortWhitelist(ranges []PortRange) Option {
	return func(o *Options) error {
		o.PortWhitelist = ranges
		return nil
	}
}

// WithAllowDirectIP toggles whether a literal IP hostname may be used as a
// destination without DNS resolution. Default true.
func WithAllowDirectIP(allow bool) Option {
	return func(o *Options) error { o.AllowDirectIP = allow; return nil }
}

// WithAllowPrivateIPs toggles whether broadcast/link-local/CGNAT/private/
// reserved destination addresses are permitted. Default false.
func WithAllowPrivateIPs(allow bool) Option {
	return func(o *Options) error { o.AllowPrivateIPs = allow; return nil }
}

// WithAllowLoopbackIPs toggles whether loopback/unspecified destination
// addresses are permitted. Default false.
func WithAllowLoopbackIPs(allow bool) Option {
	return func(o *Options) error { o.AllowLoopbackIPs = allow; return nil }
}

// WithStreamLimits sets the per-host and total per-connection stream
// quotas. Pass -1 to disable either.
func WithStreamLimits(perHost, total int) Option {
	return func(o *Options) error {
		o.StreamLimitPerHost = perHost
		o.StreamLimitTotal = total
		return nil
	}
}

// WithAllowStreamKinds toggles TCP and UDP stream support independently.
// Both default to true.
func WithAllowStreamKinds(tcp, udp bool) Option {
	return func(o *Options) error {
		o.AllowTCPStreams = tcp
		o.AllowUDPStreams = udp
		return nil
	}
}

// WithDNSTTL sets how long a resolved (or failed) DNS cache entry is
// considered fresh. Default 120s.
func WithDNSTTL(ttl time.Duration) Option {
	return func(o *Options) error {
		if ttl <= 0 {
			return fmt.Errorf("dns ttl must be positive, got %s", ttl)
		}
		o.DNSTTL = ttl
		return nil
	}
}

// WithDNSLookup selects system-level resolution honoring order.
func WithDNSLookup(order AddressOrder) Option {
	return func(o *Options) error {
		o.DNSMethod = DNSMethodLookup
		o.DNSResultOrder = order
		return nil
	}
}

// WithDNSResolve selects authoritative queries against servers, honoring
// order for the A/AAAA try sequence.
func WithDNSResolve(servers []string, order AddressOrder) Option {
	return func(o *Options) error {
		if len(servers) == 0 {
			return fmt.Errorf("dns resolve requires at least one server")
		}
		o.DNSMethod = DNSMethodResolve
		o.DNSServers = servers
		o.DNSResultOrder = order
		return nil
	}
}

// WithDNSCustomFunc delegates resolution to fn as-is.
func WithDNSCustomFunc(fn CustomResolveFunc) Option {
	return func(o *Options) error {
		if fn == nil {
			return fmt.Errorf("custom dns func must not be nil")
		}
		o.DNSMethod = DNSMethodCustom
		o.DNSCustomFunc = fn
		return nil
	}
}

// WithWispVersion selects protocol version 1 or 2.
func WithWispVersion(version int) Option {
	return func(o *Options) error {
		if version != 1 && version != 2 {
			return fmt.Errorf("wisp version must be 1 or 2, got %d", version)
		}
		o.WispVersion = version
		return nil
	}
}

// WithMOTD sets the server message of the day advertised during the v2
// handshake.
func WithMOTD(message string) Option {
	return func(o *Options) error {
		o.WispMOTD = message
		o.HasMOTD = true
		return nil
	}
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
