package file

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/grokify/seekio"
)

// tempPattern is the os.CreateTemp pattern for ingested input.
const tempPattern = "seekio-*"

// NewFromReader copies r into a new temporary file and returns an unopened
// stream over it. The file is removed by Release unless a Transfer has
// moved it into place as another stream's file.
func NewFromReader(r io.Reader, config Config, opts ...seekio.Option) (*Stream, error) {
	tmp, err := os.CreateTemp(config.TempDir, tempPattern)
	if err != nil {
		return nil, seekio.NewError("ingest", config.TempDir, err)
	}
	name := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(name)
		return nil, seekio.NewError("ingest", name, err)
	}

	s := NewWithConfig(name, config, opts...)
	s.temporary = true
	s.logger.Debug("input materialized", "bytes", n)
	return s, nil
}

// NewFromStdin reads standard input to the end into a temporary file.
func NewFromStdin(config Config, opts ...seekio.Option) (*Stream, error) {
	return NewFromReader(os.Stdin, config, opts...)
}

// NewFromDataURI decodes a data: URI into a temporary file. Both base64
// and percent-encoded payloads are accepted.
func NewFromDataURI(uri string, config Config, opts ...seekio.Option) (*Stream, error) {
	data, err := DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	return NewFromReader(bytes.NewReader(data), config, opts...)
}

// DecodeDataURI returns the payload of a data: URI of the form
// data:[<mediatype>][;base64],<data>.
func DecodeDataURI(uri string) ([]byte, error) {
	if len(uri) < 5 || !strings.EqualFold(uri[:5], "data:") {
		return nil, seekio.NewError("parse", uri, seekio.ErrInvalidLocator)
	}
	header, payload, ok := strings.Cut(uri[5:], ",")
	if !ok {
		return nil, seekio.NewError("parse", "data:", fmt.Errorf("%w: missing comma", seekio.ErrInvalidLocator))
	}

	isBase64 := false
	for _, param := range strings.Split(header, ";") {
		if strings.EqualFold(strings.TrimSpace(param), "base64") {
			isBase64 = true
		}
	}

	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, seekio.NewError("parse", "data:", fmt.Errorf("%w: %w", seekio.ErrInvalidLocator, err))
		}
		return []byte(decoded), nil
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, payload)
	if unescaped, err := url.PathUnescape(payload); err == nil {
		payload = unescaped
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var rerr error
		data, rerr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rerr != nil {
			return nil, seekio.NewError("parse", "data:", fmt.Errorf("%w: %w", seekio.ErrInvalidLocator, errors.Join(err, rerr)))
		}
	}
	return data, nil
}
