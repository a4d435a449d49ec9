package remote

import (
	"strconv"
	"time"
)

// Decorate wraps f with the decorators selected by a registry config map.
// Protocol factories call it so that every remote protocol accepts:
//   - retries: retry failed calls up to this many times
//   - retry_delay: first backoff delay, as a time.Duration string
//   - rate_limit: bytes per second moved in either direction
//
// Unparseable or non-positive values are ignored.
func Decorate(f Fetcher, config map[string]string) Fetcher {
	if v, err := strconv.ParseInt(config["rate_limit"], 10, 64); err == nil && v > 0 {
		f = WithRateLimit(f, v)
	}
	if v, err := strconv.Atoi(config["retries"]); err == nil && v > 0 {
		rc := DefaultRetryConfig()
		rc.MaxRetries = v
		if d, err := time.ParseDuration(config["retry_delay"]); err == nil && d > 0 {
			rc.InitialDelay = d
		}
		f = WithRetry(f, rc)
	}
	return f
}
