package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// doqHandshakeTimeout bounds the QUIC handshake for a new DoQ connection (§4.6).
const doqHandshakeTimeout = 3 * time.Second

// doqALPN is the ALPN token registered for DNS-over-QUIC (RFC 9250 §4.1.1).
const doqALPN = "doq"

// DoQServer implements DNS-over-QUIC (RFC 9250): one bidirectional QUIC
// stream per query/response, framed the same as DNS-over-TCP.
type DoQServer struct {
	Logger      *slog.Logger
	Handler     *QueryHandler
	Certificate string
	Key         string
	Hostname    string

	listener *quic.Listener
	wg       sync.WaitGroup
}

// Run starts the DoQ listener on addr and blocks until ctx is cancelled.
func (s *DoQServer) Run(ctx context.Context, addr string) error {
	cert, err := tls.LoadX509KeyPair(s.Certificate, s.Key)
	if err != nil {
		return err
	}

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{doqALPN},
	}
	if s.Hostname != "" {
		tlsConf.ServerName = s.Hostname
	}

	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{
		HandshakeIdleTimeout: doqHandshakeTimeout,
		MaxIdleTimeout:       tcpConnectionIdleTimeout,
	})
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Go(func() {
		s.acceptLoop(ctx, ln)
	})

	<-ctx.Done()
	return s.Stop(5 * time.Second)
}

func (s *DoQServer) acceptLoop(ctx context.Context, ln *quic.Listener) {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		c := conn
		s.wg.Go(func() {
			s.handleConnection(ctx, c)
		})
	}
}

func (s *DoQServer) handleConnection(ctx context.Context, conn *quic.Conn) {
	defer conn.CloseWithError(0, "")

	remoteIP := remoteIPString(conn.RemoteAddr())

	for range maxQueriesPerConnection {
		if ctx.Err() != nil {
			return
		}

		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}

		s.wg.Go(func() {
			s.handleStream(ctx, stream, remoteIP)
		})
	}
}

func (s *DoQServer) handleStream(ctx context.Context, stream *quic.Stream, remoteIP string) {
	defer stream.Close()

	msg, ok := readLengthPrefixedMessage(stream, maxTCPMessageSize, tcpReadTimeout)
	if !ok || len(msg) == 0 {
		return
	}

	if s.Handler == nil {
		return
	}

	res := s.Handler.Handle(ctx, "doq", remoteIP, msg)
	if len(res.ResponseBytes) == 0 {
		return
	}
	writeLengthPrefixedMessage(stream, res.ResponseBytes, tcpReadTimeout)
}

// Stop closes the listener and waits for in-flight streams to finish.
func (s *DoQServer) Stop(timeout time.Duration) error {
	if s.listener != nil {
		_ = s.listener.Close()
	}

	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("doq server: timeout waiting for connections")
	}
}
