// Package http provides a remote.Fetcher for HTTP and HTTPS resources.
//
// Ranges are read with Range requests. A server that ignores the Range
// header and answers 200 still works: the body is sliced locally. Writing
// is off by default; with Config.Writable set, PutRange sends a PUT with a
// Content-Range header and Replace a plain PUT.
//
// Importing the package registers the http and https protocols:
//
//	import _ "github.com/grokify/seekio/backend/http"
//
//	s, _ := seekio.Open("https://example.com/photo.jpg", nil)
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/remote"
)

// Fetcher implements remote.Fetcher over HTTP.
type Fetcher struct {
	url    string
	client *http.Client
	config Config
	logger *slog.Logger
}

// New creates a fetcher for rawURL. Only the logger option is used.
func New(rawURL string, config Config, opts ...seekio.Option) (*Fetcher, error) {
	if rawURL == "" {
		return nil, ErrURLRequired
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", seekio.ErrInvalidLocator, err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return nil, ErrInvalidScheme
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transport := &http.Transport{}
	if dt, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = dt.Clone()
	}
	transport.Proxy = proxyFunc(config)

	o := seekio.ApplyOptions(opts...)
	return &Fetcher{
		url: rawURL,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		config: config,
		logger: o.Logger.With("url", rawURL),
	}, nil
}

// Size asks for the size with HEAD. Servers that do not report a length
// are asked for the first byte, whose Content-Range carries the total.
func (f *Fetcher) Size(ctx context.Context) (int64, error) {
	resp, err := f.do(ctx, http.MethodHead, nil, nil)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK && resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}
	if err := statusError(resp, http.StatusOK, http.StatusMethodNotAllowed); err != nil {
		return 0, err
	}

	resp, err = f.do(ctx, http.MethodGet, map[string]string{"Range": "bytes=0-0"}, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		return totalFromContentRange(resp.Header.Get("Content-Range")), nil
	case http.StatusOK:
		return resp.ContentLength, nil
	}
	return 0, statusError(resp)
}

// FetchRange reads n bytes at off; n of -1 reads to the end.
func (f *Fetcher) FetchRange(ctx context.Context, off, n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	var header map[string]string
	switch {
	case n > 0:
		header = map[string]string{"Range": fmt.Sprintf("bytes=%d-%d", off, off+n-1)}
	case off > 0:
		header = map[string]string{"Range": fmt.Sprintf("bytes=%d-", off)}
	}

	resp, err := f.do(ctx, http.MethodGet, header, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if n > 0 {
			return readN(resp.Body, n)
		}
		return io.ReadAll(resp.Body)
	case http.StatusOK:
		// The server ignored the range.
		if off > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, off); err != nil {
				return nil, err
			}
		}
		if n > 0 {
			return readN(resp.Body, n)
		}
		return io.ReadAll(resp.Body)
	}
	return nil, statusError(resp)
}

// PutRange sends p with PUT and a Content-Range header.
func (f *Fetcher) PutRange(ctx context.Context, off int64, p []byte) error {
	if !f.config.Writable {
		return seekio.ErrNotSupported
	}
	header := map[string]string{
		"Content-Range": fmt.Sprintf("bytes %d-%d/*", off, off+int64(len(p))-1),
	}
	resp, err := f.do(ctx, http.MethodPut, header, p)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return statusError(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// Truncate is not supported over HTTP.
func (f *Fetcher) Truncate(context.Context, int64) error {
	return seekio.ErrNotSupported
}

// Replace sends the whole content with PUT.
func (f *Fetcher) Replace(ctx context.Context, data []byte) error {
	if !f.config.Writable {
		return seekio.ErrNotSupported
	}
	resp, err := f.do(ctx, http.MethodPut, nil, data)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return statusError(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// Features reports PutRange and Replace when the fetcher is writable.
func (f *Fetcher) Features() remote.Features {
	return remote.Features{
		PutRange: f.config.Writable,
		Replace:  f.config.Writable,
	}
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *Fetcher) do(ctx context.Context, method string, header map[string]string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, f.url, r)
	if err != nil {
		return nil, err
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
	if f.config.Username != "" {
		req.SetBasicAuth(f.config.Username, f.config.Password)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("http request",
		"method", method,
		"range", req.Header.Get("Range"),
		"status", resp.StatusCode)
	return resp, nil
}

// statusError maps an unexpected status to a seekio error. Codes listed
// in ok are not errors.
func statusError(resp *http.Response, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: %s", seekio.ErrNotFound, resp.Status)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", seekio.ErrPermissionDenied, resp.Status)
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return fmt.Errorf("%w: %s", seekio.ErrNotSupported, resp.Status)
	}
	return fmt.Errorf("http: unexpected status %s", resp.Status)
}

// totalFromContentRange parses the total of "bytes a-b/total" or
// "bytes */total". An unknown total yields -1.
func totalFromContentRange(v string) int64 {
	_, total, ok := strings.Cut(v, "/")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func readN(r io.Reader, n int64) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return buf[:got], nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Ensure Fetcher implements remote.Fetcher
var _ remote.Fetcher = (*Fetcher)(nil)
