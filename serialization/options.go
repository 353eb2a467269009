package serialization

import (
	"log/slog"

	"github.com/smnsjas/go-sifcore/surrogate"
)

// DefaultMaxDepth is the default limit for element nesting when decoding.
const DefaultMaxDepth = 100

type options struct {
	logger    *slog.Logger
	registry  *surrogate.Registry
	maxDepth  int
	strict    bool
	namespace bool
}

func defaultOptions() options {
	return options{
		logger:   slog.New(slog.DiscardHandler),
		maxDepth: DefaultMaxDepth,
	}
}

// Option configures a Serializer or Deserializer.
type Option func(*options)

// WithLogger sets the logger for debug records. Nil restores the discard
// logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = slog.New(slog.DiscardHandler)
		}
		o.logger = l
	}
}

// WithRegistry sets the surrogate registry consulted for every node.
func WithRegistry(r *surrogate.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMaxDepth limits element nesting when decoding. Values below one
// restore DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = DefaultMaxDepth
		}
		o.maxDepth = n
	}
}

// WithStrict makes the Deserializer fail on elements and attributes the
// dictionary does not declare for the document's version, instead of
// skipping them.
func WithStrict() Option {
	return func(o *options) { o.strict = true }
}

// WithNamespace makes the Serializer declare the version's default
// namespace on the root element.
func WithNamespace() Option {
	return func(o *options) { o.namespace = true }
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
