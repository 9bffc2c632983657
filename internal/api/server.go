// Package api provides the read-only JSON inventory API for lexa. It
// exposes the same container inventory the DNS side resolves against as
// a filtered JSON listing over HTTPS, plus health/stats and a swagger UI.
package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sys/unix"

	"github.com/kaidyth/lexa/internal/api/handlers"
	"github.com/kaidyth/lexa/internal/api/middleware"
	"github.com/kaidyth/lexa/internal/config"
	"github.com/kaidyth/lexa/internal/inventory"
)

// Server is the read-only inventory REST API server.
type Server struct {
	cfg        config.TLSConfig
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New builds the gin engine and routes for the inventory API. It does not
// bind a listener; call Run to start serving.
func New(cfg config.TLSConfig, cache *inventory.Cache, load inventory.Loader, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(cache, load, logger)
	RegisterRoutes(engine, h)
	mountLandingPage(engine, logger)

	return &Server{cfg: cfg, logger: logger, engine: engine}
}

// Engine exposes the underlying gin engine, primarily for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run binds the configured TLS listener and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	cert, err := tls.LoadX509KeyPair(s.cfg.Certificate, s.cfg.Key)
	if err != nil {
		return fmt.Errorf("api: load certificate: %w", err)
	}

	tlsConf := &tls.Config{Certificates: []tls.Certificate{cert}}
	if s.cfg.MTLS != nil && s.cfg.MTLS.CACertificate != "" {
		pool, err := loadCAPool(s.cfg.MTLS.CACertificate)
		if err != nil {
			return fmt.Errorf("api: load mtls ca: %w", err)
		}
		tlsConf.ClientCAs = pool
		tlsConf.ClientAuth = tls.RequireAndVerifyClientCert
	}

	addr := net.JoinHostPort(s.cfg.Bind.Host, strconv.Itoa(s.cfg.Bind.Port))

	var ln net.Listener
	if s.cfg.SoReusePort {
		ln, err = listenReusePort(addr)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	tlsLn := tls.NewListener(ln, tlsConf)

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(tlsLn)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

// listenReusePort binds addr with SO_REUSEPORT, matching the DNS
// transports' multi-socket pattern.
func listenReusePort(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", addr)
}
