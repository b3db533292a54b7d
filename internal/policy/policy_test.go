package policy

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisp-gateway/wispd/internal/config"
	"github.com/wisp-gateway/wispd/internal/wire"
)

type stubResolver struct {
	addr net.IP
	err  error
}

func (s stubResolver) LookupIP(context.Context, string) (net.IP, error) { return s.addr, s.err }

type stubConn struct {
	total   int
	perHost map[string]int
}

func (s stubConn) StreamCount() int                   { return s.total }
func (s stubConn) StreamCountForHost(host string) int { return s.perHost[host] }

func defaultOpts(t *testing.T, opts ...config.Option) *config.Options {
	t.Helper()
	o, err := config.New(opts...)
	require.NoError(t, err)
	return o
}

func TestKindGate(t *testing.T) {
	opts := defaultOpts(t, config.WithAllowStreamKinds(false, true))
	resolver := stubResolver{addr: net.ParseIP("93.184.216.34")}
	reason := IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "example.com", 80)
	require.Equal(t, wire.CloseHostBlocked, reason)
}

func TestHostnameWhitelistWins(t *testing.T) {
	opts := defaultOpts(t,
		config.WithHostnameWhitelist([]string{`^allowed\.com$`}),
		config.WithHostnameBlacklist([]string{`.*`}), // would deny everything if it were consulted
	)
	resolver := stubResolver{addr: net.ParseIP("93.184.216.34")}
	require.Equal(t, Allowed, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "allowed.com", 80))
	require.Equal(t, wire.CloseHostBlocked, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "other.com", 80))
}

func TestPortBlacklistRange(t *testing.T) {
	opts := defaultOpts(t, config.WithPortBlacklist([]config.PortRange{{Lo: 1, Hi: 1023}}))
	resolver := stubResolver{addr: net.ParseIP("93.184.216.34")}
	require.Equal(t, wire.CloseHostBlocked, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "example.com", 80))
	require.Equal(t, Allowed, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "example.com", 8080))
}

func TestDirectIPGate(t *testing.T) {
	opts := defaultOpts(t, config.WithAllowDirectIP(false))
	resolver := stubResolver{addr: net.ParseIP("93.184.216.34")}
	require.Equal(t, wire.CloseHostBlocked, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "93.184.216.34", 80))
	// Non-literal hostnames are unaffected by the direct-IP gate.
	require.Equal(t, Allowed, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "example.com", 80))
}

func TestLoopbackAndPrivateGates(t *testing.T) {
	opts := defaultOpts(t)
	cases := []struct {
		name string
		addr string
	}{
		{"loopback", "127.0.0.1"},
		{"unspecified", "0.0.0.0"},
		{"private", "10.0.0.5"},
		{"link-local", "169.254.1.1"},
		{"cgnat", "100.64.0.1"},
		{"broadcast", "255.255.255.255"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := stubResolver{addr: net.ParseIP(tc.addr)}
			got := IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "example.com", 80)
			require.Equal(t, wire.CloseHostBlocked, got, "address %s", tc.addr)
		})
	}
}

func TestLoopbackAllowedWhenConfigured(t *testing.T) {
	opts := defaultOpts(t, config.WithAllowLoopbackIPs(true))
	resolver := stubResolver{addr: net.ParseIP("127.0.0.1")}
	require.Equal(t, Allowed, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "localhost", 80))
}

func TestResolutionFailureFallsBackToLiteral(t *testing.T) {
	opts := defaultOpts(t, config.WithAllowLoopbackIPs(false))
	resolver := stubResolver{err: context.DeadlineExceeded}
	// Hostname is a literal loopback address; resolution fails, so the
	// literal is classified directly and still denied.
	got := IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "127.0.0.1", 80)
	require.Equal(t, wire.CloseHostBlocked, got)
}

func TestQuotasOnlyAppliedWithConnection(t *testing.T) {
	opts := defaultOpts(t, config.WithStreamLimits(1, 2))
	resolver := stubResolver{addr: net.ParseIP("93.184.216.34")}

	// No connection: quotas skipped entirely.
	require.Equal(t, Allowed, IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "example.com", 80))

	conn := stubConn{total: 2, perHost: map[string]int{"example.com": 0}}
	require.Equal(t, wire.CloseConnThrottled, IsStreamAllowed(context.Background(), opts, resolver, conn, wire.StreamTCP, "example.com", 80))

	conn2 := stubConn{total: 0, perHost: map[string]int{"example.com": 1}}
	require.Equal(t, wire.CloseConnThrottled, IsStreamAllowed(context.Background(), opts, resolver, conn2, wire.StreamTCP, "example.com", 80))
}

// End-to-end scenario 2: allow_tcp_streams=false denies the spec's sample
// CONNECT with HostBlocked.
func TestScenario2PolicyDenial(t *testing.T) {
	opts := defaultOpts(t, config.WithAllowStreamKinds(false, true))
	resolver := stubResolver{addr: net.ParseIP("93.184.216.34")}
	got := IsStreamAllowed(context.Background(), opts, resolver, nil, wire.StreamTCP, "example.com", 80)
	require.Equal(t, wire.CloseHostBlocked, got)
	require.Equal(t, uint8(0x48), uint8(got))
}
