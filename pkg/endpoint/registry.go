package endpoint

import (
	"context"
	"fmt"

	"github.com/snapdisk/snapdisk/pkg/trust"
)

// Dial connects to spec, loading and configuring a trust-store
// artifact for the schemes that need one (tls, quic). stdout and
// subprocess are dial-only in the sense that the caller already has a
// live stream or argv to hand; they are not reachable through Dial and
// must be constructed directly via NewStdio/Subprocess.
func Dial(ctx context.Context, spec *Spec) (Endpoint, error) {
	switch spec.Scheme {
	case SchemeIP:
		return DialTCP(spec.Address, spec.Port)

	case SchemeUnix:
		return DialUnix(spec.Path)

	case SchemeTLS:
		store, err := trust.Load(spec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("endpoint: load tls keyfile %s: %w", spec.KeyFile, err)
		}
		cfg, err := trust.ClientConfig(store)
		if err != nil {
			return nil, err
		}
		return DialTLS(spec.Address, spec.Port, cfg)

	case SchemeQUIC:
		store, err := trust.Load(spec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("endpoint: load quic keyfile %s: %w", spec.KeyFile, err)
		}
		cfg, err := trust.ClientConfigQUIC(store)
		if err != nil {
			return nil, err
		}
		return DialQUIC(ctx, spec.Address, spec.Port, cfg)

	case SchemeSSH:
		return DialSSH(spec)

	default:
		return nil, fmt.Errorf("endpoint: %q is not a dialable scheme", spec.Scheme)
	}
}

// Listen binds spec for incoming connections, loading and configuring
// a trust-store artifact for the schemes that need one. ssh and
// subprocess have no listen side: a peer reaches a remote image server
// by opening an SSH session or piping a subprocess, not the reverse.
func Listen(spec *Spec) (Listener, error) {
	switch spec.Scheme {
	case SchemeIP:
		return ListenTCP(spec.Address, spec.Port)

	case SchemeUnix:
		return ListenUnix(spec.Path)

	case SchemeTLS:
		store, err := trust.Load(spec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("endpoint: load tls keyfile %s: %w", spec.KeyFile, err)
		}
		cfg, err := trust.ServerConfig(store)
		if err != nil {
			return nil, err
		}
		return ListenTLS(spec.Address, spec.Port, cfg)

	case SchemeQUIC:
		store, err := trust.Load(spec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("endpoint: load quic keyfile %s: %w", spec.KeyFile, err)
		}
		cfg, err := trust.ServerConfigQUIC(store)
		if err != nil {
			return nil, err
		}
		return ListenQUIC(spec.Address, spec.Port, cfg)

	default:
		return nil, fmt.Errorf("endpoint: %q is not a listenable scheme", spec.Scheme)
	}
}
