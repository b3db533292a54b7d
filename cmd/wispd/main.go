// wispd listens for incoming WebSocket connections and runs the Wisp
// connection engine over each one (§4.6). One engine.Connection is created
// per accepted carrier; the process itself carries no per-connection state.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"nhooyr.io/websocket"

	"github.com/wisp-gateway/wispd/internal/carrier"
	"github.com/wisp-gateway/wispd/internal/clock"
	"github.com/wisp-gateway/wispd/internal/config"
	"github.com/wisp-gateway/wispd/internal/engine"
	"github.com/wisp-gateway/wispd/internal/resolver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	addr string
	path string

	wispVersion int
	motd        string

	allowTCP bool
	allowUDP bool

	allowDirectIP    bool
	allowPrivateIPs  bool
	allowLoopbackIPs bool

	hostnameBlacklist string
	portBlacklist     string

	streamLimitPerHost int
	streamLimitTotal   int

	dnsTTL time.Duration

	jsonLogs bool
	debug    bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.addr, "addr", ":9001", "listen address")
	flag.StringVar(&f.path, "path", "/", "path the WebSocket endpoint is served on")
	flag.IntVar(&f.wispVersion, "wisp-version", 2, "Wisp protocol version to speak (1 or 2)")
	flag.StringVar(&f.motd, "motd", "", "server message of the day advertised during the v2 handshake (empty disables MOTD)")
	flag.BoolVar(&f.allowTCP, "allow-tcp", true, "allow TCP streams")
	flag.BoolVar(&f.allowUDP, "allow-udp", true, "allow UDP streams")
	flag.BoolVar(&f.allowDirectIP, "allow-direct-ip", true, "allow a literal IP address as a CONNECT hostname")
	flag.BoolVar(&f.allowPrivateIPs, "allow-private-ips", false, "allow destinations that resolve to private/reserved addresses")
	flag.BoolVar(&f.allowLoopbackIPs, "allow-loopback-ips", false, "allow destinations that resolve to loopback/unspecified addresses")
	flag.StringVar(&f.hostnameBlacklist, "hostname-blacklist", "", "comma-separated regex patterns denying destination hostnames")
	flag.StringVar(&f.portBlacklist, "port-blacklist", "", "comma-separated PORT or LO-HI ranges denying destination ports")
	flag.IntVar(&f.streamLimitPerHost, "stream-limit-per-host", -1, "max concurrent streams per destination hostname, per connection (-1 disables)")
	flag.IntVar(&f.streamLimitTotal, "stream-limit-total", -1, "max concurrent streams per connection (-1 disables)")
	flag.DurationVar(&f.dnsTTL, "dns-ttl", 120*time.Second, "how long a resolved hostname is cached")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "emit JSON structured logs instead of plain text")
	flag.BoolVar(&f.debug, "debug", false, "enable debug-level logging")
	flag.Parse()
	return f
}

func buildLogger(f cliFlags) *slog.Logger {
	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f.jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler)
}

func buildOptions(f cliFlags) (*config.Options, error) {
	opts := []config.Option{
		config.WithWispVersion(f.wispVersion),
		config.WithAllowStreamKinds(f.allowTCP, f.allowUDP),
		config.WithAllowDirectIP(f.allowDirectIP),
		config.WithAllowPrivateIPs(f.allowPrivateIPs),
		config.WithAllowLoopbackIPs(f.allowLoopbackIPs),
		config.WithStreamLimits(f.streamLimitPerHost, f.streamLimitTotal),
		config.WithDNSTTL(f.dnsTTL),
	}
	if f.motd != "" {
		opts = append(opts, config.WithMOTD(f.motd))
	}
	if patterns := splitNonEmpty(f.hostnameBlacklist); len(patterns) > 0 {
		opts = append(opts, config.WithHostnameBlacklist(patterns))
	}
	if ranges, err := parsePortRanges(f.portBlacklist); err != nil {
		return nil, fmt.Errorf("port-blacklist: %w", err)
	} else if len(ranges) > 0 {
		opts = append(opts, config.WithPortBlacklist(ranges))
	}
	return config.New(opts...)
}

func splitNonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePortRanges(s string) ([]config.PortRange, error) {
	parts := splitNonEmpty(s)
	out := make([]config.PortRange, 0, len(parts))
	for _, part := range parts {
		if strings.Contains(part, "-") {
			var lo, hi uint16
			if _, err := fmt.Sscanf(part, "%d-%d", &lo, &hi); err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", part, err)
			}
			out = append(out, config.PortRange{Lo: lo, Hi: hi})
		} else {
			var p uint16
			if _, err := fmt.Sscanf(part, "%d", &p); err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", part, err)
			}
			out = append(out, config.SinglePort(p))
		}
	}
	return out, nil
}

func run() error {
	flags := parseFlags()

	opts, err := buildOptions(flags)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}

	logger := buildLogger(flags)
	res := resolver.New(opts, clock.Real{})

	var nextConnID atomic.Uint64
	mux := http.NewServeMux()
	mux.HandleFunc(flags.path, func(w http.ResponseWriter, r *http.Request) {
		handleUpgrade(w, r, opts, res, logger, &nextConnID)
	})

	srv := &http.Server{
		Addr:    flags.addr,
		Handler: mux,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("wispd starting",
		slog.String("addr", flags.addr),
		slog.String("path", flags.path),
		slog.Int("wisp_version", opts.WispVersion),
		slog.Bool("allow_tcp", opts.AllowTCPStreams),
		slog.Bool("allow_udp", opts.AllowUDPStreams),
	)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown did not complete cleanly", slog.String("error", err.Error()))
	}
	logger.Info("wispd stopped")
	return nil
}

// handleUpgrade accepts one WebSocket connection and runs the connection
// engine over it until the carrier closes. Engine errors are not surfaced
// to the client: by the time Run returns, the carrier is already torn down.
func handleUpgrade(
	w http.ResponseWriter,
	r *http.Request,
	opts *config.Options,
	res *resolver.Resolver,
	logger *slog.Logger,
	nextConnID *atomic.Uint64,
) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("remote", r.RemoteAddr), slog.String("error", err.Error()))
		return
	}

	ch := carrier.NewWSChannel(conn)
	ctx := r.Context()
	if err := ch.Connect(ctx); err != nil {
		logger.Warn("carrier connect failed", slog.String("error", err.Error()))
		_ = ch.Close()
		return
	}

	id := nextConnID.Add(1)
	c := engine.New(id, ch, opts, res, logger)
	c.Run(ctx)
}
