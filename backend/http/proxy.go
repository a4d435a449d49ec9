package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"
)

// proxyFunc returns the http.Transport proxy selector for config.
func proxyFunc(config Config) func(*http.Request) (*url.URL, error) {
	choose := proxyConfig(config).ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return choose(req.URL)
	}
}

// proxyConfig maps config onto the NO_PROXY aware selector. Loopback
// hosts and the NoProxy list, including CIDR ranges, are reached directly.
func proxyConfig(config Config) *httpproxy.Config {
	return &httpproxy.Config{
		HTTPProxy:  config.HTTPProxy,
		HTTPSProxy: config.HTTPSProxy,
		NoProxy:    config.NoProxy,
	}
}

// proxyFor returns the proxy to use for u, or nil for a direct connection.
func proxyFor(config Config, u *url.URL) (*url.URL, error) {
	return proxyConfig(config).ProxyFunc()(u)
}

// parseProxy accepts "host:port" as well as a full proxy URL.
func parseProxy(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("http: invalid proxy %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("http: invalid proxy %q: missing host", raw)
	}
	return u, nil
}
