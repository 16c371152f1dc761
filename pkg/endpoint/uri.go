package endpoint

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Default ports per scheme, as specified.
const (
	DefaultTCPPort  = 55860
	DefaultTLSPort  = 48748
	DefaultQUICPort = 48749
)

// DefaultAddress is the connect/bind address assumed when a URI omits one.
const DefaultAddress = "127.0.0.1"

// Scheme identifies one of the recognized endpoint URI schemes.
type Scheme string

const (
	SchemeStdout     Scheme = "stdout"
	SchemeIP         Scheme = "ip"
	SchemeUnix       Scheme = "unix"
	SchemeTLS        Scheme = "tls"
	SchemeQUIC       Scheme = "quic"
	SchemeSSH        Scheme = "ssh"
	SchemeSubprocess Scheme = "subprocess"
)

// Spec is a parsed endpoint URI.
type Spec struct {
	Scheme Scheme

	// ip, tls, quic
	Address string
	Port    int

	// unix
	Path string

	// tls, quic
	KeyFile string

	// ssh
	User         string
	Host         string
	SSHPort      int
	RemotePath   string
	RemoteBinary string // defaults to "snapdisk" if empty

	// subprocess
	Argv []string
}

// Parse parses an endpoint URI per the grammar in §4.1:
//
//	stdout://
//	ip://[addr][:port]
//	unix://<path>
//	tls://[addr][:port]/<keyfile>
//	quic://[addr][:port]/<keyfile>
//	ssh://[user@]host[:port]/<remote-path>
func Parse(raw string) (*Spec, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("endpoint: invalid URI %q: %w", raw, err)
	}

	switch Scheme(u.Scheme) {
	case SchemeStdout:
		return &Spec{Scheme: SchemeStdout}, nil

	case SchemeIP:
		addr, port, err := hostPort(u.Host, DefaultTCPPort)
		if err != nil {
			return nil, err
		}
		return &Spec{Scheme: SchemeIP, Address: addr, Port: port}, nil

	case SchemeUnix:
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("endpoint: unix:// requires a path")
		}
		return &Spec{Scheme: SchemeUnix, Path: path}, nil

	case SchemeTLS:
		addr, port, err := hostPort(u.Host, DefaultTLSPort)
		if err != nil {
			return nil, err
		}
		keyfile := strings.TrimPrefix(u.Path, "/")
		if keyfile == "" {
			return nil, fmt.Errorf("endpoint: tls:// requires /<keyfile>")
		}
		return &Spec{Scheme: SchemeTLS, Address: addr, Port: port, KeyFile: keyfile}, nil

	case SchemeQUIC:
		addr, port, err := hostPort(u.Host, DefaultQUICPort)
		if err != nil {
			return nil, err
		}
		keyfile := strings.TrimPrefix(u.Path, "/")
		if keyfile == "" {
			return nil, fmt.Errorf("endpoint: quic:// requires /<keyfile>")
		}
		return &Spec{Scheme: SchemeQUIC, Address: addr, Port: port, KeyFile: keyfile}, nil

	case SchemeSSH:
		user := ""
		host := u.Host
		if u.User != nil {
			user = u.User.Username()
		}
		addr, port, err := hostPort(host, 22)
		if err != nil {
			return nil, err
		}
		remotePath := strings.TrimPrefix(u.Path, "/")
		if remotePath == "" {
			return nil, fmt.Errorf("endpoint: ssh:// requires /<remote-path>")
		}
		return &Spec{Scheme: SchemeSSH, User: user, Host: addr, SSHPort: port, RemotePath: remotePath}, nil

	default:
		return nil, fmt.Errorf("endpoint: unrecognized scheme %q", u.Scheme)
	}
}

func hostPort(hostport string, defaultPort int) (string, int, error) {
	if hostport == "" {
		return DefaultAddress, defaultPort, nil
	}
	host, portStr, err := splitHostPort(hostport)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		host = DefaultAddress
	}
	port := defaultPort
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, fmt.Errorf("endpoint: invalid port %q: %w", portStr, err)
		}
		port = p
	}
	return host, port, nil
}

// splitHostPort is a tolerant host:port splitter that accepts a bare
// host, a bare ":port", or "host:port", since every scheme here makes
// both the address and the port optional.
func splitHostPort(hostport string) (host, port string, err error) {
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return hostport, "", nil
	}
	return hostport[:idx], hostport[idx+1:], nil
}
