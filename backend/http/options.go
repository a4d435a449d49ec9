package http

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Errors specific to the HTTP fetcher.
var (
	ErrURLRequired   = errors.New("http: url is required")
	ErrInvalidScheme = errors.New("http: url scheme must be http or https")
)

// Config holds configuration for the HTTP fetcher.
type Config struct {
	// Timeout bounds each request, including reading the body.
	// Default: 60 seconds.
	Timeout time.Duration

	// UserAgent is sent with every request.
	// Default: "seekio".
	UserAgent string

	// Username and Password enable basic authentication when Username is set.
	Username string
	Password string

	// Writable enables PutRange and Replace, sent as PUT requests.
	// Most servers do not accept them, so the default is read-only.
	Writable bool

	// HTTPProxy is the proxy for http:// URLs, as "host:port" or a URL.
	HTTPProxy string

	// HTTPSProxy is the proxy for https:// URLs.
	HTTPSProxy string

	// NoProxy is a comma-separated list of hosts or domain suffixes that
	// are reached directly. "*" disables proxying.
	NoProxy string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Timeout:   60 * time.Second,
		UserAgent: "seekio",
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Environment variables (the upper-case name wins):
//   - HTTP_PROXY or http_proxy: proxy for http:// URLs
//   - HTTPS_PROXY or https_proxy: proxy for https:// URLs
//   - NO_PROXY or no_proxy: hosts that bypass the proxy
//   - SEEKIO_HTTP_TIMEOUT: request timeout in seconds
func ConfigFromEnv() Config {
	config := DefaultConfig()

	config.HTTPProxy = getenvEither("HTTP_PROXY", "http_proxy")
	config.HTTPSProxy = getenvEither("HTTPS_PROXY", "https_proxy")
	config.NoProxy = getenvEither("NO_PROXY", "no_proxy")

	if v := os.Getenv("SEEKIO_HTTP_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			config.Timeout = time.Duration(secs) * time.Second
		}
	}

	return config
}

// ConfigFromMap creates a Config from a string map. Settings missing from
// the map are taken from the environment, as by ConfigFromEnv.
// Supported keys:
//   - timeout: request timeout in seconds
//   - user_agent: User-Agent header
//   - user, pass or password: basic authentication
//   - writable: "true" to allow PUT write-back
//   - http_proxy, https_proxy, no_proxy: proxy settings
func ConfigFromMap(m map[string]string) Config {
	config := ConfigFromEnv()

	if v, ok := m["timeout"]; ok {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			config.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v, ok := m["user_agent"]; ok {
		config.UserAgent = v
	}
	if v, ok := m["user"]; ok {
		config.Username = v
	}
	if v, ok := m["pass"]; ok {
		config.Password = v
	}
	if v, ok := m["password"]; ok {
		config.Password = v
	}
	if v, ok := m["writable"]; ok && (v == "true" || v == "1") {
		config.Writable = true
	}
	if v, ok := m["http_proxy"]; ok {
		config.HTTPProxy = v
	}
	if v, ok := m["https_proxy"]; ok {
		config.HTTPSProxy = v
	}
	if v, ok := m["no_proxy"]; ok {
		config.NoProxy = v
	}

	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	for _, p := range []string{c.HTTPProxy, c.HTTPSProxy} {
		if p == "" {
			continue
		}
		if _, err := parseProxy(p); err != nil {
			return err
		}
	}
	return nil
}

func getenvEither(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
