package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kaidyth/lexa/internal/api"
	"github.com/kaidyth/lexa/internal/config"
	"github.com/kaidyth/lexa/internal/inventory"
	"github.com/kaidyth/lexa/internal/resolver"
)

// Runner orchestrates startup, wiring, and graceful shutdown of every
// transport lexa exposes: the always-on DNS UDP/TCP pair, the optional
// encrypted DNS transports, and the JSON inventory API.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// transport is anything Runner can start and stop uniformly.
type transport interface {
	Run(ctx context.Context, addr string) error
}

// Run builds the inventory client/cache, the DNS resolver, every
// configured transport, and the JSON API, then blocks until a shutdown
// signal (SIGINT/SIGTERM) or a fatal transport error.
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	client, err := inventory.NewClient(cfg.Server.LXD)
	if err != nil {
		return fmt.Errorf("runner: build inventory client: %w", err)
	}

	cache := inventory.NewCache(inventory.DefaultTTL)
	load := client.GetInventory

	res := &resolver.Lexa{
		Suffix: cfg.Server.LXD.Suffix,
		Cache:  cache,
		Load:   load,
		Logger: r.logger,
	}

	handler := &QueryHandler{Logger: r.logger, Resolver: res, Timeout: 4 * time.Second}

	transports, err := r.buildDNSTransports(cfg, handler)
	if err != nil {
		return err
	}

	dnsAddr := net.JoinHostPort(cfg.Server.DNS.Bind.Host, strconv.Itoa(cfg.Server.DNS.Bind.Port))
	r.logStartup(cfg, dnsAddr)

	errCh := make(chan error, len(transports)+1)
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		t := t
		go func() {
			defer wg.Done()
			if err := t.tp.Run(ctx, t.addr); err != nil {
				errCh <- fmt.Errorf("%s transport: %w", t.name, err)
			}
		}()
	}

	apiServer := api.New(cfg.Server.TLS, cache, load, r.logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Run(ctx); err != nil {
			errCh <- fmt.Errorf("json api: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			if r.logger != nil {
				r.logger.Error("transport failed, shutting down", "err", err)
			}
			cancelRun()
		}
	}

	stopTimeout := 5 * time.Second
	for _, t := range transports {
		if stopper, ok := t.tp.(interface{ Stop(time.Duration) error }); ok {
			_ = stopper.Stop(stopTimeout)
		}
	}

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(stopTimeout):
	}

	return nil
}

type boundTransport struct {
	name string
	addr string
	tp   transport
}

// buildDNSTransports always wires UDP+TCP and conditionally wires
// DoT/DoH/DoQ, validating the startup preconditions from the DNS
// transport configuration.
func (r *Runner) buildDNSTransports(cfg *config.Config, handler *QueryHandler) ([]boundTransport, error) {
	dnsAddr := net.JoinHostPort(cfg.Server.DNS.Bind.Host, strconv.Itoa(cfg.Server.DNS.Bind.Port))

	out := []boundTransport{
		{name: "udp", addr: dnsAddr, tp: &UDPServer{Logger: r.logger, Handler: handler}},
		{name: "tcp", addr: dnsAddr, tp: &TCPServer{Logger: r.logger, Handler: handler}},
	}

	if dot := cfg.Server.DNS.DoT; dot != nil {
		if dot.Certificate == "" || dot.Key == "" {
			return nil, fmt.Errorf("runner: dot requires certificate and key")
		}
		addr := net.JoinHostPort(dot.Bind.Host, strconv.Itoa(dot.Bind.Port))
		out = append(out, boundTransport{name: "dot", addr: addr, tp: &DoTServer{
			Logger: r.logger, Handler: handler, Certificate: dot.Certificate, Key: dot.Key,
		}})
	}

	if doh := cfg.Server.DNS.DoH; doh != nil {
		if doh.Certificate == "" || doh.Key == "" {
			return nil, fmt.Errorf("runner: doh requires certificate and key")
		}
		if doh.Hostname == "" {
			return nil, fmt.Errorf("runner: doh requires a non-empty hostname")
		}
		addr := net.JoinHostPort(doh.Bind.Host, strconv.Itoa(doh.Bind.Port))
		out = append(out, boundTransport{name: "doh", addr: addr, tp: &DoHServer{
			Logger: r.logger, Handler: handler, Certificate: doh.Certificate, Key: doh.Key, Hostname: doh.Hostname,
		}})
	}

	if quic := cfg.Server.DNS.QUIC; quic != nil {
		if quic.Certificate == "" || quic.Key == "" {
			return nil, fmt.Errorf("runner: quic requires certificate and key")
		}
		addr := net.JoinHostPort(quic.Bind.Host, strconv.Itoa(quic.Bind.Port))
		out = append(out, boundTransport{name: "doq", addr: addr, tp: &DoQServer{
			Logger: r.logger, Handler: handler, Certificate: quic.Certificate, Key: quic.Key, Hostname: quic.Hostname,
		}})
	}

	return out, nil
}

// logStartup logs server configuration at startup.
func (r *Runner) logStartup(cfg *config.Config, dnsAddr string) {
	if r.logger == nil {
		return
	}
	r.logger.Info(
		"lexa listening",
		"dns_addr", dnsAddr,
		"suffix", cfg.Server.LXD.Suffix,
		"dot", cfg.Server.DNS.DoT != nil,
		"doh", cfg.Server.DNS.DoH != nil,
		"doq", cfg.Server.DNS.QUIC != nil,
	)
}
