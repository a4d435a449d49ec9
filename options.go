package seekio

import (
	"context"
	"log/slog"

	"github.com/grokify/mogo/log/slogutil"
)

// DefaultBlockSize is the block size used by remote streams when none is configured.
const DefaultBlockSize = 1024

// Option configures a stream created by a backend constructor.
type Option func(*Options)

// Options holds per-stream configuration shared by all backends.
type Options struct {
	// Logger is used for structured logging.
	// If nil, a null logger is used (no logging).
	Logger *slog.Logger

	// Context is passed to every network call made by the stream.
	// If nil, context.Background() is used.
	Context context.Context

	// BlockSize is the block size of remote streams.
	// 0 means DefaultBlockSize.
	BlockSize int
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithContext sets the context used for network calls.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// WithBlockSize sets the remote block size.
func WithBlockSize(size int) Option {
	return func(o *Options) {
		o.BlockSize = size
	}
}

// ApplyOptions applies options and fills in defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = slogutil.Null()
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	return o
}
