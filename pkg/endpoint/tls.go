package endpoint

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

// DialTLS connects to addr:port and performs a TLS 1.2 handshake with
// cfg (built by pkg/trust), returning the resulting Endpoint.
func DialTLS(addr string, port int, cfg *tls.Config) (Endpoint, error) {
	raw, err := net.Dial("tcp", net.JoinHostPort(addr, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("endpoint: tls dial %s:%d: %w", addr, port, err)
	}
	conn := tls.Client(raw, cfg)
	if err := conn.Handshake(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("endpoint: tls handshake with %s:%d: %w", addr, port, err)
	}
	return Wrap(conn, "tls"), nil
}

type tlsListener struct {
	l   net.Listener
	cfg *tls.Config
}

// ListenTLS binds addr:port for TLS 1.2 connections under cfg. A peer
// that fails the handshake (most commonly: its certificate isn't
// pinned) is logged and does not affect the listener, which keeps
// accepting per the mandated retry-on-failed-accept policy.
func ListenTLS(addr string, port int, cfg *tls.Config) (Listener, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(addr, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("endpoint: tls listen %s:%d: %w", addr, port, err)
	}
	return &tlsListener{l: l, cfg: cfg}, nil
}

func (t *tlsListener) Accept() (Endpoint, error) {
	for {
		raw, err := t.l.Accept()
		if err != nil {
			return nil, err
		}
		conn := tls.Server(raw, t.cfg)
		if err := conn.Handshake(); err != nil {
			logrus.WithError(err).Warn("endpoint: rejected TLS peer, continuing to accept")
			raw.Close()
			continue
		}
		return Wrap(conn, "tls"), nil
	}
}

func (t *tlsListener) Close() error { return t.l.Close() }
