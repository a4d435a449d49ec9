// Package sftp provides a remote.Fetcher for files on SFTP servers.
//
// Ranges are read with ReadAt and written back with WriteAt, so a changed
// block costs one ranged write. Shrinking uses SETSTAT.
//
// Basic usage with password authentication:
//
//	f, err := sftp.New("/data/scan.tif", sftp.Config{
//	    Host:     "example.com",
//	    User:     "username",
//	    Password: "password",
//	})
//	s := remote.NewOwned(f, "sftp://example.com/data/scan.tif")
//
// Through the registry, with SSH key authentication:
//
//	s, err := seekio.Open("sftp://username@example.com/data/scan.tif", map[string]string{
//	    "key_file": "/path/to/id_ed25519",
//	})
package sftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/remote"
)

// Fetcher implements remote.Fetcher for one file over SFTP.
type Fetcher struct {
	config Config
	path   string
	logger *slog.Logger

	mu         sync.Mutex
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	borrowed   bool
	closed     bool
}

// New creates a fetcher for p on the server described by config. The SSH
// connection is made on first use.
func New(p string, config Config, opts ...seekio.Option) (*Fetcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if p == "" {
		return nil, ErrPathRequired
	}
	if config.Port == 0 {
		config.Port = 22
	}
	if config.Timeout == 0 {
		config.Timeout = 30
	}

	o := seekio.ApplyOptions(opts...)
	f := &Fetcher{config: config, logger: o.Logger}
	f.path = f.fullPath(p)
	f.logger = f.logger.With("host", config.Host, "path", f.path)
	return f, nil
}

// NewFromURL creates a fetcher for an sftp:// or ssh:// URL. Host, port
// and credentials in the URL take precedence over config.
func NewFromURL(rawURL string, config Config, opts ...seekio.Option) (*Fetcher, error) {
	p, err := applyURL(rawURL, &config)
	if err != nil {
		return nil, err
	}
	return New(p, config, opts...)
}

// NewFromClient creates a fetcher that uses an established SFTP client.
// Close does not close the client.
func NewFromClient(client *sftp.Client, p string, opts ...seekio.Option) *Fetcher {
	o := seekio.ApplyOptions(opts...)
	return &Fetcher{
		path:       p,
		logger:     o.Logger.With("path", p),
		sftpClient: client,
		borrowed:   true,
	}
}

func applyURL(rawURL string, config *Config) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", seekio.ErrInvalidLocator, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "sftp", "ssh":
	default:
		return "", fmt.Errorf("%w: not an sftp url: %s", seekio.ErrInvalidLocator, rawURL)
	}
	if h := u.Hostname(); h != "" {
		config.Host = h
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("%w: bad port %q", seekio.ErrInvalidLocator, p)
		}
		config.Port = port
	}
	if u.User != nil {
		config.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			config.Password = pw
		}
	}
	return u.Path, nil
}

// keyFileAuth creates an SSH auth method from a private key file.
func keyFileAuth(keyFile, passphrase string) (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return ssh.PublicKeys(signer), nil
}

// hostKeyCallback verifies against KnownHostsFile when one is configured.
func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // G106: verification needs KnownHostsFile
	}
	cb, err := knownhosts.New(cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("sftp: loading known_hosts: %w", err)
	}
	return cb, nil
}

// client returns the SFTP client, connecting if needed. f.mu must be held.
func (f *Fetcher) client(ctx context.Context) (*sftp.Client, error) {
	if f.closed {
		return nil, seekio.ErrReleased
	}
	if f.sftpClient != nil {
		return f.sftpClient, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := f.config

	var authMethods []ssh.AuthMethod
	if cfg.Password != "" {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}
	if cfg.KeyFile != "" {
		keyAuth, err := keyFileAuth(cfg.KeyFile, cfg.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("sftp: loading key file: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		Timeout:         time.Duration(cfg.Timeout) * time.Second,
		HostKeyCallback: hostKeys,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("sftp: SSH connection failed: %w", err)
	}

	var clientOpts []sftp.ClientOption
	if cfg.Concurrency > 0 {
		clientOpts = append(clientOpts, sftp.MaxConcurrentRequestsPerFile(cfg.Concurrency))
	}
	sftpClient, err := sftp.NewClient(sshClient, clientOpts...)
	if err != nil {
		if closeErr := sshClient.Close(); closeErr != nil {
			return nil, fmt.Errorf("sftp: SFTP session failed: %w (also failed to close SSH: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("sftp: SFTP session failed: %w", err)
	}

	f.logger.Debug("sftp connected", "addr", addr, "user", cfg.User)
	f.sshClient = sshClient
	f.sftpClient = sftpClient
	return sftpClient, nil
}

// Size returns the file size from a stat.
func (f *Fetcher) Size(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.client(ctx)
	if err != nil {
		return 0, err
	}
	fi, err := c.Stat(f.path)
	if err != nil {
		return 0, f.translateError(err)
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("sftp: %s is a directory", f.path)
	}
	return fi.Size(), nil
}

// FetchRange reads n bytes at off; n of -1 reads to the end.
func (f *Fetcher) FetchRange(ctx context.Context, off, n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.client(ctx)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		fi, err := c.Stat(f.path)
		if err != nil {
			return nil, f.translateError(err)
		}
		n = fi.Size() - off
		if n <= 0 {
			return []byte{}, nil
		}
	}

	file, err := c.Open(f.path)
	if err != nil {
		return nil, f.translateError(err)
	}
	defer func() { _ = file.Close() }()

	buf := make([]byte, n)
	got, err := file.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, f.translateError(err)
	}
	return buf[:got], nil
}

// PutRange writes p at off without truncating the file.
func (f *Fetcher) PutRange(ctx context.Context, off int64, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.client(ctx)
	if err != nil {
		return err
	}
	file, err := c.OpenFile(f.path, os.O_WRONLY)
	if err != nil {
		return f.translateError(err)
	}
	if _, err := file.WriteAt(p, off); err != nil {
		_ = file.Close()
		return f.translateError(err)
	}
	return f.translateError(file.Close())
}

// Truncate sets the file size.
func (f *Fetcher) Truncate(ctx context.Context, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.client(ctx)
	if err != nil {
		return err
	}
	return f.translateError(c.Truncate(f.path, size))
}

// Replace creates or truncates the file and writes data.
func (f *Fetcher) Replace(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := f.client(ctx)
	if err != nil {
		return err
	}
	file, err := c.Create(f.path)
	if err != nil {
		return f.translateError(err)
	}
	if _, err := file.ReadFrom(bytes.NewReader(data)); err != nil {
		_ = file.Close()
		return f.translateError(err)
	}
	return f.translateError(file.Close())
}

// Features reports full write support.
func (f *Fetcher) Features() remote.Features {
	return remote.Features{PutRange: true, Truncate: true, Replace: true}
}

// Close closes the SFTP session and the SSH connection it runs on. A
// client passed to NewFromClient is left open.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if f.borrowed {
		return nil
	}

	var errs []error
	if f.sftpClient != nil {
		if err := f.sftpClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.sshClient != nil {
		if err := f.sshClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("sftp: close errors: %v", errs)
	}
	return nil
}

// drop abandons a broken session so that the next call reconnects. A
// borrowed client is kept. f.mu must be held.
func (f *Fetcher) drop() {
	if f.borrowed {
		return
	}
	if f.sftpClient != nil {
		_ = f.sftpClient.Close()
		f.sftpClient = nil
	}
	if f.sshClient != nil {
		_ = f.sshClient.Close()
		f.sshClient = nil
	}
	f.logger.Debug("sftp session dropped")
}

// fullPath resolves relative paths against the configured root.
func (f *Fetcher) fullPath(p string) string {
	if f.config.Root == "" || path.IsAbs(p) {
		return p
	}
	return path.Join(f.config.Root, p)
}

// translateError converts SFTP errors to seekio errors. f.mu must be held.
func (f *Fetcher) translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", seekio.ErrNotFound, err)
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", seekio.ErrPermissionDenied, err)
	}

	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) && statusErr.FxCode() == sftp.ErrSSHFxOpUnsupported {
		return fmt.Errorf("%w: %v", seekio.ErrNotSupported, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sftp.ErrSSHFxConnectionLost) {
		f.drop()
		return fmt.Errorf("sftp: network error for %q: %w", f.path, err)
	}

	return fmt.Errorf("sftp: error for %q: %w", f.path, err)
}

// Ensure Fetcher implements remote.Fetcher
var _ remote.Fetcher = (*Fetcher)(nil)
