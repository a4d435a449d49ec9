package ftp

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Errors specific to the FTP fetcher.
var (
	ErrHostRequired = errors.New("ftp: host is required")
	ErrPathRequired = errors.New("ftp: path is required")
)

// Config holds configuration for the FTP fetcher.
type Config struct {
	// Host is the FTP server hostname (required).
	Host string

	// Port is the FTP server port.
	// Default: 21
	Port int

	// User is the login name.
	// Default: "anonymous"
	User string

	// Password is the login password.
	// Default: "anonymous"
	Password string

	// ExplicitTLS upgrades the control connection with AUTH TLS.
	ExplicitTLS bool

	// Timeout bounds dialing and each command.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Port:     21,
		User:     "anonymous",
		Password: "anonymous",
		Timeout:  30 * time.Second,
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Environment variables:
//   - SEEKIO_FTP_HOST: server hostname
//   - SEEKIO_FTP_PORT: server port
//   - SEEKIO_FTP_USER: login name
//   - SEEKIO_FTP_PASSWORD: login password
//   - SEEKIO_FTP_TLS: "true" for explicit TLS
func ConfigFromEnv() Config {
	config := DefaultConfig()

	if v := os.Getenv("SEEKIO_FTP_HOST"); v != "" {
		config.Host = v
	}
	if v := os.Getenv("SEEKIO_FTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Port = port
		}
	}
	if v := os.Getenv("SEEKIO_FTP_USER"); v != "" {
		config.User = v
	}
	if v := os.Getenv("SEEKIO_FTP_PASSWORD"); v != "" {
		config.Password = v
	}
	if v := os.Getenv("SEEKIO_FTP_TLS"); v == "true" || v == "1" {
		config.ExplicitTLS = true
	}

	return config
}

// ConfigFromMap creates a Config from the environment overlaid with a
// string map.
// Supported keys:
//   - host: server hostname
//   - port: server port
//   - user: login name
//   - password or pass: login password
//   - tls: "true" for explicit TLS
//   - timeout: timeout in seconds
func ConfigFromMap(m map[string]string) Config {
	config := ConfigFromEnv()

	if v, ok := m["host"]; ok {
		config.Host = v
	}
	if v, ok := m["port"]; ok {
		if port, err := strconv.Atoi(v); err == nil {
			config.Port = port
		}
	}
	if v, ok := m["user"]; ok {
		config.User = v
	}
	if v, ok := m["password"]; ok {
		config.Password = v
	}
	if v, ok := m["pass"]; ok {
		config.Password = v
	}
	if v, ok := m["tls"]; ok && (v == "true" || v == "1") {
		config.ExplicitTLS = true
	}
	if v, ok := m["timeout"]; ok {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			config.Timeout = time.Duration(secs) * time.Second
		}
	}

	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrHostRequired
	}
	return nil
}
