package endpoint

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
)

var quicTransportConfig = &quic.Config{
	MaxIdleTimeout:  5 * time.Minute,
	KeepAlivePeriod: 30 * time.Second,
}

// quicRWC adapts a quic.Conn plus the one stream this protocol
// uses into an io.ReadWriteCloser, closing the stream then the
// connection on Close, mirroring the teacher's quic.Conn wrapper.
type quicRWC struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func (c *quicRWC) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *quicRWC) Write(p []byte) (int, error) { return c.stream.Write(p) }

func (c *quicRWC) Close() error {
	if err := c.stream.Close(); err != nil {
		c.conn.CloseWithError(0, "stream close error")
		return err
	}
	return c.conn.CloseWithError(0, "normal close")
}

// DialQUIC connects to addr:port over QUIC/TLS-1.3 under cfg and opens
// the single stream this protocol carries its frames over.
func DialQUIC(ctx context.Context, addr string, port int, cfg *tls.Config) (Endpoint, error) {
	target := fmt.Sprintf("%s:%d", addr, port)
	conn, err := quic.DialAddr(ctx, target, cfg, quicTransportConfig)
	if err != nil {
		return nil, fmt.Errorf("endpoint: quic dial %s: %w", target, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("endpoint: quic open stream to %s: %w", target, err)
	}
	return Wrap(&quicRWC{conn: conn, stream: stream}, "quic"), nil
}

type quicListener struct {
	l *quic.Listener
}

// ListenQUIC binds addr:port for QUIC/TLS-1.3 connections under cfg.
// Like ListenTLS, a connection that never yields an acceptable stream
// is logged and skipped rather than tearing down the listener.
func ListenQUIC(addr string, port int, cfg *tls.Config) (Listener, error) {
	target := fmt.Sprintf("%s:%d", addr, port)
	l, err := quic.ListenAddr(target, cfg, quicTransportConfig)
	if err != nil {
		return nil, fmt.Errorf("endpoint: quic listen %s: %w", target, err)
	}
	return &quicListener{l: l}, nil
}

func (q *quicListener) Accept() (Endpoint, error) {
	ctx := context.Background()
	for {
		conn, err := q.l.Accept(ctx)
		if err != nil {
			return nil, err
		}
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			logrus.WithError(err).Warn("endpoint: quic peer failed to open a stream, continuing to accept")
			conn.CloseWithError(0, "failed to accept stream")
			continue
		}
		return Wrap(&quicRWC{conn: conn, stream: stream}, "quic"), nil
	}
}

func (q *quicListener) Close() error { return q.l.Close() }
