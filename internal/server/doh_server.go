package server

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DoHMaxMessageSize bounds a DNS-over-HTTPS request body (RFC 8484).
const DoHMaxMessageSize = 65535

// DoHServer implements DNS-over-HTTPS (RFC 8484) on a single
// "/dns-query" route, accepting both the GET (?dns=<base64url>) and POST
// (body content-type application/dns-message) forms.
type DoHServer struct {
	Logger      *slog.Logger
	Handler     *QueryHandler
	Certificate string
	Key         string
	Hostname    string

	httpServer *http.Server
}

// Run starts the DoH listener on addr and blocks until ctx is cancelled.
func (s *DoHServer) Run(ctx context.Context, addr string) error {
	if s.Hostname == "" {
		return errors.New("doh: hostname is required")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/dns-query", s.handleDNSQuery)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
		TLSConfig: &tls.Config{
			ServerName: s.Hostname,
		},
		ReadHeaderTimeout: dotHandshakeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServeTLS(s.Certificate, s.Key)
	}()

	select {
	case <-ctx.Done():
		return s.Stop(5 * time.Second)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *DoHServer) handleDNSQuery(w http.ResponseWriter, r *http.Request) {
	var (
		msg []byte
		err error
	)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query().Get("dns")
		if q == "" {
			http.Error(w, "missing dns parameter", http.StatusBadRequest)
			return
		}
		msg, err = base64.RawURLEncoding.DecodeString(q)
		if err != nil {
			http.Error(w, "invalid dns parameter", http.StatusBadRequest)
			return
		}
	case http.MethodPost:
		if r.Header.Get("Content-Type") != "application/dns-message" {
			http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
			return
		}
		msg, err = io.ReadAll(io.LimitReader(r.Body, DoHMaxMessageSize))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.Handler == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	remoteIP := r.RemoteAddr
	if host, _, splitErr := net.SplitHostPort(r.RemoteAddr); splitErr == nil {
		remoteIP = host
	}

	res := s.Handler.Handle(r.Context(), "doh", remoteIP, msg)
	if len(res.ResponseBytes) == 0 {
		http.Error(w, "resolution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/dns-message")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.ResponseBytes)
}

// Stop gracefully shuts down the DoH HTTP server.
func (s *DoHServer) Stop(timeout time.Duration) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
