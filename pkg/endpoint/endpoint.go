// Package endpoint implements the reliable-byte-stream abstraction
// shared by every transport the remote image protocol can run over:
// stdio, TCP, UNIX sockets, subprocess pipes, SSH tunnels,
// mutually-authenticated TLS, and QUIC. It is the Go rendition of the
// teacher's pkg/transport Conn/Listener/Transport trio, narrowed from
// a generic byte-stream-with-deadlines contract to the two blocking
// operations (full Send, full-N-byte Recv) this protocol actually
// uses, and widened with the URI-driven scheme registry the source
// material's endpoint parser provides.
package endpoint

import (
	"io"

	"github.com/snapdisk/snapdisk/pkg/snapdiskerr"
)

// Endpoint is a live, reliable, ordered byte stream. Send blocks until
// every byte has been transmitted; Recv blocks until exactly n bytes
// have arrived, surfacing EndpointTerminated if the stream ends first.
type Endpoint interface {
	Send(data []byte) error
	Recv(n int) ([]byte, error)
	Close() error
}

// Listener accepts Endpoints. A peer that fails the handshake (e.g.
// TLS verification) is logged and skipped inside Accept, so the
// listener keeps accepting; Accept returns an error only when the
// underlying listener itself fails.
type Listener interface {
	Accept() (Endpoint, error)
	Close() error
}

// streamEndpoint adapts any io.ReadWriteCloser into an Endpoint,
// translating a short final read into EndpointTerminated. This is the
// single implementation every scheme-specific endpoint (tcp, unix,
// tls, subprocess, ssh) is built on, mirroring the way the teacher's
// tcp.Conn and quic.Conn both reduce to Read/Write/Close wrappers.
type streamEndpoint struct {
	rwc  io.ReadWriteCloser
	name string
}

// Wrap adapts rwc into an Endpoint. name identifies the scheme for
// error messages (e.g. "tcp", "unix", "stdio").
func Wrap(rwc io.ReadWriteCloser, name string) Endpoint {
	return &streamEndpoint{rwc: rwc, name: name}
}

func (e *streamEndpoint) Send(data []byte) error {
	written := 0
	for written < len(data) {
		n, err := e.rwc.Write(data[written:])
		if err != nil {
			return snapdiskerr.EndpointTerminated("%s: send failed after %d/%d bytes: %v", e.name, written, len(data), err)
		}
		written += n
	}
	return nil
}

func (e *streamEndpoint) Recv(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(e.rwc, buf); err != nil {
		return nil, snapdiskerr.EndpointTerminated("%s: recv failed (wanted %d bytes): %v", e.name, n, err)
	}
	return buf, nil
}

func (e *streamEndpoint) Close() error {
	return e.rwc.Close()
}
