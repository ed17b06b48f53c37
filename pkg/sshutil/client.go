package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
)

// DefaultTimeout bounds the TCP dial and the SSH handshake.
const DefaultTimeout = 10 * time.Second

// Client wraps an SSH connection with the alias it was dialed with.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

// Options tune Dial. Zero values use ~/.ssh paths and strict host key checking.
type Options struct {
	Timeout        time.Duration
	ConfigPath     string
	KnownHostsPath string
	// Insecure skips known_hosts verification.
	Insecure bool
	Log      logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ConfigPath == "" {
		o.ConfigPath = filepath.Join(homeDir(), ".ssh", "config")
	}
	if o.KnownHostsPath == "" {
		o.KnownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
	}
	if o.Log == nil {
		o.Log = logger.Noop()
	}
	return o
}

// Dial connects to host, which may be an ssh config alias, a hostname,
// user@host or host:port. Settings are resolved from the ssh config file.
func Dial(ctx context.Context, host string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	settings := ResolveSettings(host, opts.ConfigPath, opts.Log)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		var coded *errors.Error
		if stderrors.As(err, &coded) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	address := settings.Address()
	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH, hostKeyErr.Error(), hostKeyErr.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err, settings.EncryptedKeys))
	}

	opts.Log.Debug("ssh connected to %s (%s)", host, address)
	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// Settings are the resolved connection parameters for a host.
type Settings struct {
	Hostname      string
	Port          string
	User          string
	IdentityFile  string
	EncryptedKeys []string
}

// Address returns the host:port string for dialing.
func (s *Settings) Address() string {
	return net.JoinHostPort(s.Hostname, s.Port)
}

// ResolveSettings parses user@host:port and fills the gaps from the ssh
// config file at configPath. An explicit user wins over the config file.
func ResolveSettings(host, configPath string, log logger.Logger) *Settings {
	if log == nil {
		log = logger.Noop()
	}
	s := &Settings{Port: "22", User: currentUser()}

	explicitUser := false
	if at := strings.Index(host, "@"); at != -1 {
		s.User = host[:at]
		host = host[at+1:]
		explicitUser = true
	}

	if colon := strings.LastIndex(host, ":"); colon != -1 && isDigits(host[colon+1:]) {
		s.Port = host[colon+1:]
		host = host[:colon]
	}
	s.Hostname = host

	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return s
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		log.Debug("ignoring unreadable ssh config %s: %v", configPath, err)
		return s
	}

	found := false
	if v, _ := cfg.Get(host, "HostName"); v != "" {
		s.Hostname = v
		found = true
	}
	if v, _ := cfg.Get(host, "Port"); v != "" {
		s.Port = v
		found = true
	}
	if v, _ := cfg.Get(host, "User"); v != "" && !explicitUser {
		s.User = v
		found = true
	}
	if v, _ := cfg.Get(host, "IdentityFile"); v != "" {
		s.IdentityFile = expandPath(v)
		found = true
	}

	if matchLine > 0 && !found {
		log.Warn("host '%s' not found in %s; a Match block at line %d may hide later entries",
			host, configPath, matchLine)
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// buildSSHConfig collects auth methods and the host key callback. Keys that
// need a passphrase are recorded on settings for the error suggestion.
func buildSSHConfig(settings *Settings, opts Options) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	tryKeyFile := func(keyPath string) {
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.EncryptedKeys = append(settings.EncryptedKeys, keyPath)
			}
			return
		}
		authMethods = append(authMethods, keyAuth)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}
	if settings.IdentityFile != "" {
		tryKeyFile(settings.IdentityFile)
	}
	for _, keyPath := range defaultKeyFiles() {
		if keyPath != settings.IdentityFile {
			tryKeyFile(keyPath)
		}
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		if len(settings.EncryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.EncryptedKeys, ", "))
		}
		return nil, errors.New(errors.ErrSSH, msg, addKeysSuggestion(settings.EncryptedKeys))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // only when the operator passes --ssh-insecure
	if !opts.Insecure {
		cb, err := createHostKeyCallback(opts.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            settings.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}, nil
}

var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns agent auth when SSH_AUTH_SOCK points at an agent
// holding at least one key.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent placed first makes servers reject the remaining methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the shared agent connection.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func defaultKeyFiles() []string {
	dir := filepath.Join(homeDir(), ".ssh")
	return []string{
		filepath.Join(dir, "id_ed25519"),
		filepath.Join(dir, "id_rsa"),
		filepath.Join(dir, "id_ecdsa"),
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "Is SSH running on that box? Try: ssh <host>"
	case strings.Contains(errStr, "no route to host"), strings.Contains(errStr, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(errStr, "timeout"):
		return "Connection timed out. Host might be offline or blocked by a firewall."
	default:
		return "Make sure the host is reachable: ping <host>"
	}
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return addKeysSuggestion(encryptedKeys)
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

func addKeysSuggestion(keys []string) string {
	if len(keys) == 0 {
		return "Check your keys are loaded: ssh-add -l"
	}
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent:\n")
	for _, key := range keys {
		fmt.Fprintf(&sb, "  ssh-add %s\n", key)
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError describes a known_hosts verification failure.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns the commands that refresh known_hosts.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  Remove the old entry:\n"+
			"    ssh-keygen -R %s",
		wantStr, e.ReceivedType, host)
}

// preprocessSSHConfig returns the config up to the first Match directive,
// which ssh_config cannot parse, and that directive's 1-based line number.
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), i + 1, nil
		}
	}
	return content, 0, nil
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps knownhosts so mismatches carry a suggestion.
// A missing known_hosts file is created empty.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err != nil && stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}
