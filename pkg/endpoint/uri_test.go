package endpoint

import "testing"

func TestParseDefaults(t *testing.T) {
	cases := []struct {
		uri        string
		scheme     Scheme
		wantAddr   string
		wantPort   int
	}{
		{"stdout://", SchemeStdout, "", 0},
		{"ip://", SchemeIP, DefaultAddress, DefaultTCPPort},
		{"ip://10.0.0.5:1234", SchemeIP, "10.0.0.5", 1234},
		{"tls://", SchemeTLS, DefaultAddress, DefaultTLSPort},
		{"quic://", SchemeQUIC, DefaultAddress, DefaultQUICPort},
	}

	for _, tc := range cases {
		spec, err := Parse(tc.uri)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.uri, err)
		}
		if spec.Scheme != tc.scheme {
			t.Errorf("Parse(%q).Scheme = %q, want %q", tc.uri, spec.Scheme, tc.scheme)
		}
		if tc.scheme != SchemeStdout {
			if spec.Address != tc.wantAddr {
				t.Errorf("Parse(%q).Address = %q, want %q", tc.uri, spec.Address, tc.wantAddr)
			}
			if spec.Port != tc.wantPort {
				t.Errorf("Parse(%q).Port = %d, want %d", tc.uri, spec.Port, tc.wantPort)
			}
		}
	}
}

func TestParseTLSRequiresKeyfile(t *testing.T) {
	if _, err := Parse("tls://127.0.0.1:4000"); err == nil {
		t.Fatal("expected error for tls:// without a keyfile path")
	}
}

func TestParseTLSKeyfile(t *testing.T) {
	spec, err := Parse("tls://127.0.0.1:4000/path/to/keys.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.KeyFile != "path/to/keys.json" {
		t.Errorf("KeyFile = %q, want %q", spec.KeyFile, "path/to/keys.json")
	}
}

func TestParseUnix(t *testing.T) {
	spec, err := Parse("unix:///tmp/snapdisk.sock")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Path != "/tmp/snapdisk.sock" {
		t.Errorf("Path = %q, want %q", spec.Path, "/tmp/snapdisk.sock")
	}
}

func TestParseSSH(t *testing.T) {
	spec, err := Parse("ssh://alice@example.com:2222/var/disks/db.img")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.User != "alice" {
		t.Errorf("User = %q, want alice", spec.User)
	}
	if spec.Host != "example.com" {
		t.Errorf("Host = %q, want example.com", spec.Host)
	}
	if spec.SSHPort != 2222 {
		t.Errorf("SSHPort = %d, want 2222", spec.SSHPort)
	}
	if spec.RemotePath != "var/disks/db.img" {
		t.Errorf("RemotePath = %q, want var/disks/db.img", spec.RemotePath)
	}
}

func TestParseSSHDefaultPort(t *testing.T) {
	spec, err := Parse("ssh://example.com/data.img")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.SSHPort != 22 {
		t.Errorf("SSHPort = %d, want 22", spec.SSHPort)
	}
}

func TestParseUnknownScheme(t *testing.T) {
	if _, err := Parse("ftp://example.com/"); err == nil {
		t.Fatal("expected error for unrecognized scheme")
	}
}
