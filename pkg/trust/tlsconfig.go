package trust

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// cipherSuitesTLS12 is the mandatory restricted suite list for
// tls:// endpoints.
var cipherSuitesTLS12 = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
}

func certPool(peerPEMs []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for i, pemStr := range peerPEMs {
		if !pool.AppendCertsFromPEM([]byte(pemStr)) {
			return nil, fmt.Errorf("trust: trusted_peer_certs[%d] is not a valid PEM certificate", i)
		}
	}
	return pool, nil
}

// ServerConfig builds the tls.Config for the accepting side of a
// tls:// endpoint: TLS 1.2 exactly, the restricted cipher suite list,
// and mandatory client-certificate verification against the pinned
// peer pool. Server-side client-cert verification never performs
// hostname matching, so no extra care is needed to disable it here.
func ServerConfig(store *Store) (*tls.Config, error) {
	cert, err := tls.X509KeyPair([]byte(store.Cert), []byte(store.Key))
	if err != nil {
		return nil, fmt.Errorf("trust: parse server cert/key: %w", err)
	}
	pool, err := certPool(store.TrustedPeerCerts)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
		CipherSuites: cipherSuitesTLS12,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
	}, nil
}

// ClientConfig builds the tls.Config for the connecting side of a
// tls:// endpoint. Hostname verification is mandatorily disabled (the
// certificates' CN is a random UUID, not a DNS name) so the config
// disables the standard verifier and substitutes a manual chain
// check against the pinned peer pool via VerifyPeerCertificate.
func ClientConfig(store *Store) (*tls.Config, error) {
	cert, err := tls.X509KeyPair([]byte(store.Cert), []byte(store.Key))
	if err != nil {
		return nil, fmt.Errorf("trust: parse client cert/key: %w", err)
	}
	pool, err := certPool(store.TrustedPeerCerts)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		MinVersion:            tls.VersionTLS12,
		MaxVersion:            tls.VersionTLS12,
		CipherSuites:          cipherSuitesTLS12,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyPinnedChain(pool),
	}, nil
}

// ServerConfigQUIC and ClientConfigQUIC build the equivalent configs
// for the quic:// endpoint, which runs over TLS 1.3 as QUIC requires.
// TLS 1.3 cipher suite selection is not configurable in crypto/tls, so
// only the version and pinning policy are set.

func ServerConfigQUIC(store *Store) (*tls.Config, error) {
	cert, err := tls.X509KeyPair([]byte(store.Cert), []byte(store.Key))
	if err != nil {
		return nil, fmt.Errorf("trust: parse server cert/key: %w", err)
	}
	pool, err := certPool(store.TrustedPeerCerts)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		NextProtos:   []string{"snapdisk/1"},
	}, nil
}

func ClientConfigQUIC(store *Store) (*tls.Config, error) {
	cert, err := tls.X509KeyPair([]byte(store.Cert), []byte(store.Key))
	if err != nil {
		return nil, fmt.Errorf("trust: parse client cert/key: %w", err)
	}
	pool, err := certPool(store.TrustedPeerCerts)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		MinVersion:            tls.VersionTLS13,
		MaxVersion:            tls.VersionTLS13,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyPinnedChain(pool),
		NextProtos:            []string{"snapdisk/1"},
	}, nil
}

// verifyPinnedChain builds a VerifyPeerCertificate callback that
// checks the peer's leaf certificate chains to one of pool's pinned
// roots, without any hostname/SAN matching.
func verifyPinnedChain(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("trust: peer presented no certificate")
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("trust: parse peer certificate: %w", err)
		}
		opts := x509.VerifyOptions{
			Roots:     pool,
			KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		}
		if _, err := leaf.Verify(opts); err != nil {
			return fmt.Errorf("trust: peer certificate not in trusted_peer_certs: %w", err)
		}
		return nil
	}
}
