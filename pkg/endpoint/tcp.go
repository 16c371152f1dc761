package endpoint

import (
	"fmt"
	"net"
)

// DialTCP connects to addr:port and returns it as an Endpoint. This is
// the corrected counterpart to the source's typo'd
// SocketEndpoint.create_ip_connection: a single, unambiguous call to
// net.Dial, as the design notes direct.
func DialTCP(addr string, port int) (Endpoint, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(addr, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("endpoint: tcp dial %s:%d: %w", addr, port, err)
	}
	return Wrap(conn, "tcp"), nil
}

type tcpListener struct {
	l net.Listener
}

// ListenTCP binds addr:port and returns a Listener of plain TCP
// endpoints.
func ListenTCP(addr string, port int) (Listener, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(addr, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("endpoint: tcp listen %s:%d: %w", addr, port, err)
	}
	return &tcpListener{l: l}, nil
}

func (t *tcpListener) Accept() (Endpoint, error) {
	conn, err := t.l.Accept()
	if err != nil {
		return nil, err
	}
	return Wrap(conn, "tcp"), nil
}

func (t *tcpListener) Close() error { return t.l.Close() }
