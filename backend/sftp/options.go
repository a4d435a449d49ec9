package sftp

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Errors specific to the SFTP fetcher.
var (
	ErrHostRequired = errors.New("sftp: host is required")
	ErrUserRequired = errors.New("sftp: user is required")
	ErrAuthRequired = errors.New("sftp: password or key_file is required")
	ErrPathRequired = errors.New("sftp: path is required")
)

// Config holds configuration for the SFTP fetcher.
type Config struct {
	// Host is the server name or address. An sftp:// URL overrides it.
	Host string

	// Port is the SSH port. Default: 22.
	Port int

	// User is the login name.
	User string

	// Password and KeyFile are the two ways to authenticate; at least one
	// is needed. Both may be set.
	Password string
	KeyFile  string

	// KeyPassphrase unlocks an encrypted KeyFile.
	KeyPassphrase string

	// Root is the base directory for relative paths. Absolute paths,
	// including every path taken from an sftp:// URL, are used as given.
	Root string

	// KnownHostsFile enables host key verification. Empty accepts any key.
	KnownHostsFile string

	// Timeout is the SSH dial timeout in seconds. Default: 30.
	Timeout int

	// Concurrency is the number of requests kept in flight for one
	// ranged read or write. Default: 5.
	Concurrency int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Port:        22,
		Timeout:     30,
		Concurrency: 5,
	}
}

// lookupFunc returns the setting for a config key and whether it is set.
type lookupFunc func(key string) (string, bool)

// apply copies every setting found by get into c. Numbers that do not
// parse or are not positive are ignored.
func (c *Config) apply(get lookupFunc) {
	strs := []struct {
		key string
		dst *string
	}{
		{"host", &c.Host},
		{"user", &c.User},
		{"pass", &c.Password},
		{"password", &c.Password},
		{"key_file", &c.KeyFile},
		{"key_passphrase", &c.KeyPassphrase},
		{"root", &c.Root},
		{"known_hosts", &c.KnownHostsFile},
	}
	for _, s := range strs {
		if v, ok := get(s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"port", &c.Port},
		{"timeout", &c.Timeout},
		{"concurrency", &c.Concurrency},
	}
	for _, n := range ints {
		if v, ok := get(n.key); ok {
			if i, err := strconv.Atoi(v); err == nil && i > 0 {
				*n.dst = i
			}
		}
	}
}

// ConfigFromEnv creates a Config from SEEKIO_SFTP_* environment variables.
// Each map key of ConfigFromMap has an upper-case variable, for example
// SEEKIO_SFTP_HOST, SEEKIO_SFTP_KEY_FILE or SEEKIO_SFTP_KNOWN_HOSTS.
// Empty variables are ignored.
func ConfigFromEnv() Config {
	config := DefaultConfig()
	config.apply(func(key string) (string, bool) {
		v := os.Getenv("SEEKIO_SFTP_" + strings.ToUpper(key))
		return v, v != ""
	})
	return config
}

// ConfigFromMap creates a Config from the environment overlaid with a
// string map.
// Supported keys:
//   - host, port, user
//   - pass or password, key_file, key_passphrase
//   - root: base directory for relative paths
//   - known_hosts: path to a known_hosts file
//   - timeout: SSH dial timeout in seconds
//   - concurrency: requests in flight per read or write
func ConfigFromMap(m map[string]string) Config {
	config := ConfigFromEnv()
	config.apply(func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	})
	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrHostRequired
	}
	if c.User == "" {
		return ErrUserRequired
	}
	if c.Password == "" && c.KeyFile == "" {
		return ErrAuthRequired
	}
	return nil
}
