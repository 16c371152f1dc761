// Package trust implements the TLS trust-store artifact (C7): a
// self-signed certificate, its private key, and a pinned set of peer
// certificates, all persisted as one JSON file with owner-only read
// permissions. It is the Go rendition of the teacher's pkg/identity
// key-management idiom (native keygen, JSON persistence, owner-only
// file mode), generalized from an Ed25519 signing identity to a
// secp384r1 X.509 certificate suitable for crypto/tls.
package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// certLifetime is "≈100 years", matching the spec's long-lived
// self-signed bootstrap certificates.
const certLifetime = 100 * 365 * 24 * time.Hour

// ownerReadOnly is the permission mode for trust artifacts: only the
// owning user may read (or write) the file.
const ownerReadOnly = 0o600

// document is the on-disk JSON shape of a trust-store artifact.
type document struct {
	Cert             string   `json:"cert"`
	Key              string   `json:"key"`
	TrustedPeerCerts []string `json:"trusted_peer_certs"`
}

// Store is an in-memory view of a trust-store artifact.
type Store struct {
	Cert             string
	Key              string
	TrustedPeerCerts []string
}

func (s *Store) toDocument() document {
	peers := s.TrustedPeerCerts
	if peers == nil {
		peers = []string{}
	}
	return document{Cert: s.Cert, Key: s.Key, TrustedPeerCerts: peers}
}

func fromDocument(d document) *Store {
	return &Store{Cert: d.Cert, Key: d.Key, TrustedPeerCerts: d.TrustedPeerCerts}
}

// Load reads a trust-store artifact from path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trust: read %s: %w", path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("trust: parse %s: %w", path, err)
	}
	return fromDocument(doc), nil
}

func writeAtomic(path string, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("trust: marshal %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trust: create dir for %s: %w", path, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, ownerReadOnly); err != nil {
		return fmt.Errorf("trust: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("trust: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// CreateCertKey generates a fresh P-384 key and a self-signed X.509
// certificate whose CN is a random UUID and whose lifetime is ~100
// years, then writes the JSON artifact to path with owner-only
// permissions.
func CreateCertKey(path string) (*Store, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("trust: generate P-384 key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("trust: generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: uuid.NewString()},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(certLifetime),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("trust: create self-signed certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("trust: marshal private key: %w", err)
	}

	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}))
	keyPEM := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))

	store := &Store{Cert: certPEM, Key: keyPEM, TrustedPeerCerts: []string{}}
	if err := writeAtomic(path, store.toDocument()); err != nil {
		return nil, err
	}
	return store, nil
}

// AddTrustedPeers appends peerPEMs to the trusted_peer_certs list at
// path and rewrites the artifact atomically.
func AddTrustedPeers(path string, peerPEMs ...string) error {
	store, err := Load(path)
	if err != nil {
		return err
	}
	store.TrustedPeerCerts = append(store.TrustedPeerCerts, peerPEMs...)
	return writeAtomic(path, store.toDocument())
}

// CreateServerClientKeys creates two fresh artifacts at serverPath and
// clientPath and cross-pins them, so each side's trusted_peer_certs
// contains exactly the other's certificate.
func CreateServerClientKeys(serverPath, clientPath string) error {
	server, err := CreateCertKey(serverPath)
	if err != nil {
		return fmt.Errorf("trust: create server key: %w", err)
	}
	client, err := CreateCertKey(clientPath)
	if err != nil {
		return fmt.Errorf("trust: create client key: %w", err)
	}
	if err := AddTrustedPeers(serverPath, client.Cert); err != nil {
		return fmt.Errorf("trust: pin client cert into server artifact: %w", err)
	}
	if err := AddTrustedPeers(clientPath, server.Cert); err != nil {
		return fmt.Errorf("trust: pin server cert into client artifact: %w", err)
	}
	return nil
}
