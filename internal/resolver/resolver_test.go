package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wisp-gateway/wispd/internal/clock"
	"github.com/wisp-gateway/wispd/internal/config"
)

func TestLiteralIPBypassesResolution(t *testing.T) {
	opts, err := config.New()
	require.NoError(t, err)
	r := New(opts, clock.Real{})
	ip, err := r.LookupIP(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.7", ip.String())
}

func TestCustomResolveFuncIsUsed(t *testing.T) {
	called := 0
	opts, err := config.New(config.WithDNSCustomFunc(func(ctx context.Context, hostname string) (net.IP, error) {
		called++
		return net.ParseIP("10.1.2.3"), nil
	}))
	require.NoError(t, err)
	fake := clock.NewFake(time.Unix(0, 0))
	r := New(opts, fake)

	ip, err := r.LookupIP(context.Background(), "custom.example")
	require.NoError(t, err)
	require.Equal(t, "10.1.2.3", ip.String())
	require.Equal(t, 1, called)

	// Cache hit: second call within TTL does not call the custom func again.
	_, err = r.LookupIP(context.Background(), "custom.example")
	require.NoError(t, err)
	require.Equal(t, 1, called, "cache hit should not re-invoke the custom func")
}

// I6: the cache never returns an entry older than dns_ttl.
func TestCacheEvictsExpiredEntries(t *testing.T) {
	called := 0
	opts, err := config.New(
		config.WithDNSTTL(time.Second),
		config.WithDNSCustomFunc(func(ctx context.Context, hostname string) (net.IP, error) {
			called++
			return net.ParseIP("10.0.0.1"), nil
		}),
	)
	require.NoError(t, err)
	fake := clock.NewFake(time.Unix(0, 0))
	r := New(opts, fake)

	_, err = r.LookupIP(context.Background(), "expiring.example")
	require.NoError(t, err)
	fake.Advance(2 * time.Second)
	_, err = r.LookupIP(context.Background(), "expiring.example")
	require.NoError(t, err)
	require.Equal(t, 2, called, "cache entry should have expired")
}

func TestCachedErrorIsReraised(t *testing.T) {
	wantErr := &net.DNSError{Err: "boom", Name: "fails.example"}
	opts, err := config.New(config.WithDNSCustomFunc(func(ctx context.Context, hostname string) (net.IP, error) {
		return nil, wantErr
	}))
	require.NoError(t, err)
	fake := clock.NewFake(time.Unix(0, 0))
	r := New(opts, fake)

	_, err = r.LookupIP(context.Background(), "fails.example")
	require.Same(t, wantErr, err)
	// Second call hits the cached error.
	_, err = r.LookupIP(context.Background(), "fails.example")
	require.Same(t, wantErr, err)
}

func TestPickByOrder(t *testing.T) {
	v4 := net.IPAddr{IP: net.ParseIP("1.2.3.4")}
	v6 := net.IPAddr{IP: net.ParseIP("::1")}

	require.Equal(t, v4.IP.String(), pickByOrder([]net.IPAddr{v4, v6}, config.AddressOrderVerbatim).String())
	require.Equal(t, v6.IP.String(), pickByOrder([]net.IPAddr{v4, v6}, config.AddressOrderIPv6First).String())
	require.Equal(t, v4.IP.String(), pickByOrder([]net.IPAddr{v6, v4}, config.AddressOrderIPv4First).String())
}
