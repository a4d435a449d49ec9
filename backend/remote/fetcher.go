// Package remote presents a network resource as a seekio.Stream.
//
// A remote stream keeps a table of fixed-size blocks covering the resource.
// Blocks are fetched through a Fetcher only when a read touches them, and
// Transfer writes back only the blocks whose bytes changed.
//
// Protocol packages (http, ftp, sftp, s3) provide the Fetcher; this package
// provides the stream, the write-back diff and fetcher decorators:
//
//	f := remote.WithRetry(httpFetcher, remote.DefaultRetryConfig())
//	s := remote.New(f, "https://example.com/big.tif")
//	if err := s.Open(); err != nil {
//	    return err
//	}
//	header, err := seekio.ReadOrError(s, 64) // fetches one block
package remote

import (
	"context"

	"github.com/grokify/seekio"
)

// Fetcher moves byte ranges between a remote resource and a remote stream.
// All methods block until the network call completes or ctx is done.
type Fetcher interface {
	// Size returns the size of the resource, or -1 if the protocol cannot
	// report it without downloading.
	Size(ctx context.Context) (int64, error)

	// FetchRange returns n bytes starting at off. n of -1 means up to the end.
	FetchRange(ctx context.Context, off, n int64) ([]byte, error)

	// PutRange overwrites the bytes at off with p, extending the resource
	// if p reaches past its end.
	PutRange(ctx context.Context, off int64, p []byte) error

	// Truncate shrinks the resource to size bytes.
	Truncate(ctx context.Context, size int64) error

	// Replace replaces the whole resource with data.
	Replace(ctx context.Context, data []byte) error

	// Features reports which write operations are supported.
	Features() Features
}

// Features describes the write operations a Fetcher supports.
type Features struct {
	PutRange bool
	Truncate bool
	Replace  bool
}

// CanWrite reports whether any write operation is supported.
func (f Features) CanWrite() bool {
	return f.PutRange || f.Replace
}

// ReadOnly provides the write methods of a Fetcher for read-only protocols.
// Embed it and implement Size and FetchRange.
type ReadOnly struct{}

// PutRange returns ErrNotSupported.
func (ReadOnly) PutRange(context.Context, int64, []byte) error {
	return seekio.ErrNotSupported
}

// Truncate returns ErrNotSupported.
func (ReadOnly) Truncate(context.Context, int64) error {
	return seekio.ErrNotSupported
}

// Replace returns ErrNotSupported.
func (ReadOnly) Replace(context.Context, []byte) error {
	return seekio.ErrNotSupported
}

// Features reports no write support.
func (ReadOnly) Features() Features {
	return Features{}
}
