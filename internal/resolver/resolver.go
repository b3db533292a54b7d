// Package resolver implements the DNS resolver façade (§4.3): a small
// TTL cache in front of one of three resolution strategies (system lookup,
// authoritative queries against configured servers, or an injected custom
// function).
package resolver

import (
	"context"
	"net"

	"golang.org/x/sync/singleflight"

	"github.com/wisp-gateway/wispd/internal/clock"
	"github.com/wisp-gateway/wispd/internal/config"
)

// Resolver is the DNS façade used by policy and the socket layer.
type Resolver struct {
	opts   *config.Options
	cache  *cache
	group  singleflight.Group
	system *net.Resolver
}

// New builds a Resolver governed by opts, using clk for TTL accounting.
func New(opts *config.Options, clk clock.Clock) *Resolver {
	return &Resolver{
		opts:   opts,
		cache:  newCache(opts.DNSTTL, clk),
		system: net.DefaultResolver,
	}
}

// LookupIP resolves hostname to a destination address per §4.3. A literal
// IPv4/IPv6 hostname is returned unchanged without consulting the cache.
// Concurrent lookups for the same fresh hostname are coalesced via
// singleflight so N streams racing to resolve the same host issue one
// resolution, not N.
func (r *Resolver) LookupIP(ctx context.Context, hostname string) (net.IP, error) {
	if literal := net.ParseIP(hostname); literal != nil {
		return literal, nil
	}

	if entry, ok := r.cache.get(hostname); ok {
		return entry.addr, entry.err
	}

	result, err, _ := r.group.Do(hostname, func() (interface{}, error) {
		addr, resolveErr := r.resolve(ctx, hostname)
		r.cache.set(hostname, addr, resolveErr)
		return addr, resolveErr
	})
	if err != nil {
		return nil, err
	}
	return result.(net.IP), nil
}

func (r *Resolver) resolve(ctx context.Context, hostname string) (net.IP, error) {
	switch r.opts.DNSMethod {
	case config.DNSMethodCustom:
		return r.opts.DNSCustomFunc(ctx, hostname)
	case config.DNSMethodResolve:
		return r.resolveAuthoritative(ctx, hostname)
	default:
		return r.resolveSystem(ctx, hostname)
	}
}

// resolveSystem performs system-level name resolution honoring the
// configured address-family order.
func (r *Resolver) resolveSystem(ctx context.Context, hostname string) (net.IP, error) {
	addrs, err := r.system.LookupIPAddr(ctx, hostname)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no addresses found", Name: hostname}
	}
	return pickByOrder(addrs, r.opts.DNSResultOrder), nil
}

func pickByOrder(addrs []net.IPAddr, order config.AddressOrder) net.IP {
	if order == config.AddressOrderVerbatim {
		return addrs[0].IP
	}
	preferV4 := order == config.AddressOrderIPv4First
	var fallback net.IP
	for _, a := range addrs {
		isV4 := a.IP.To4() != nil
		if isV4 == preferV4 {
			return a.IP
		}
		if fallback == nil {
			fallback = a.IP
		}
	}
	return fallback
}

// resolveAuthoritative queries the configured DNS servers directly,
// dialing the first reachable one, trying AAAA/A in the order the spec
// describes for each AddressOrder.
func (r *Resolver) resolveAuthoritative(ctx context.Context, hostname string) (net.IP, error) {
	authoritative := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			var lastErr error
			for _, server := range r.opts.DNSServers {
				conn, err := d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		},
	}

	primary, secondary := "ip6", "ip4"
	if r.opts.DNSResultOrder == config.AddressOrderIPv4First {
		primary, secondary = "ip4", "ip6"
	}

	if ip, err := lookupFamily(ctx, authoritative, hostname, primary); err == nil {
		return ip, nil
	}
	return lookupFamily(ctx, authoritative, hostname, secondary)
}

func lookupFamily(ctx context.Context, r *net.Resolver, hostname, network string) (net.IP, error) {
	ips, err := r.LookupIP(ctx, network, hostname)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no addresses found", Name: hostname}
	}
	return ips[0], nil
}
