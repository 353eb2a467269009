package sif

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/smnsjas/go-sifcore/messages"
	"github.com/smnsjas/go-sifcore/objects"
	"github.com/smnsjas/go-sifcore/query"
	"github.com/smnsjas/go-sifcore/schema"
	"github.com/smnsjas/go-sifcore/serialization"
	"github.com/smnsjas/go-sifcore/surrogate"
	"github.com/smnsjas/go-sifcore/version"
)

// Codec marshals, unmarshals and converts documents of one dictionary. It
// is safe for concurrent use.
type Codec struct {
	dict   *objects.Dictionary
	reg    *surrogate.Registry
	logger *slog.Logger

	ser  *serialization.Serializer
	des  *serialization.Deserializer
	msgs *messages.Codec

	workers int
}

type config struct {
	dict      *objects.Dictionary
	reg       *surrogate.Registry
	logger    *slog.Logger
	strict    bool
	namespace bool
	workers   int
}

// Option configures a Codec.
type Option func(*config)

// WithSchema replaces the bundled sample schema. reg may be nil.
func WithSchema(dict *objects.Dictionary, reg *surrogate.Registry) Option {
	return func(c *config) {
		c.dict = dict
		c.reg = reg
	}
}

// WithLogger sets the logger for debug records about surrogate claims and
// skipped elements.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithStrict makes unknown elements and attributes an error.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithNamespace makes Marshal declare the version's default namespace on
// the root element.
func WithNamespace(on bool) Option {
	return func(c *config) {
		c.namespace = on
	}
}

// WithWorkers bounds the number of documents ConvertAll handles at once.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// NewCodec returns a Codec over the bundled schema unless WithSchema is
// given.
func NewCodec(opts ...Option) (*Codec, error) {
	cfg := config{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dict == nil {
		dict, reg, err := schema.Default()
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		cfg.dict, cfg.reg = dict, reg
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	sopts := []serialization.Option{
		serialization.WithLogger(cfg.logger),
		serialization.WithRegistry(cfg.reg),
	}
	if cfg.strict {
		sopts = append(sopts, serialization.WithStrict())
	}
	if cfg.namespace {
		sopts = append(sopts, serialization.WithNamespace())
	}
	return &Codec{
		dict:    cfg.dict,
		reg:     cfg.reg,
		logger:  cfg.logger,
		ser:     serialization.NewSerializer(sopts...),
		des:     serialization.NewDeserializer(cfg.dict, sopts...),
		msgs:    messages.NewCodec(cfg.dict, sopts...),
		workers: cfg.workers,
	}, nil
}

// Dictionary returns the codec's dictionary.
func (c *Codec) Dictionary() *objects.Dictionary { return c.dict }

// Marshal renders el as a document of version v.
func (c *Codec) Marshal(el *objects.Element, v version.Version) ([]byte, error) {
	return c.ser.Marshal(el, v)
}

// Unmarshal decodes a document of version v. A zero v reads the version
// from the root element.
func (c *Codec) Unmarshal(data []byte, v version.Version) (*objects.Element, version.Version, error) {
	if v.IsZero() {
		return c.des.UnmarshalDetect(data)
	}
	el, err := c.des.Unmarshal(data, v)
	return el, v, err
}

// Convert rewrites a document from one version to another. A zero from
// reads the source version from the root element.
func (c *Codec) Convert(data []byte, from, to version.Version) ([]byte, error) {
	el, from, err := c.Unmarshal(data, from)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	c.logger.Debug("converting document",
		slog.String("element", el.Def().Name()),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	return c.Marshal(el, to)
}

// ConvertAll converts docs concurrently. The result at index i belongs to
// docs[i]. The first failure cancels the remaining work.
func (c *Codec) ConvertAll(ctx context.Context, docs [][]byte, from, to version.Version) ([][]byte, error) {
	out := make([][]byte, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := c.Convert(doc, from, to)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalEvent wraps e in a SIF_Message envelope of version v.
func (c *Codec) MarshalEvent(e *messages.Event, v version.Version) ([]byte, error) {
	return c.msgs.Marshal(e, v)
}

// UnmarshalEvent decodes a SIF_Message event envelope.
func (c *Codec) UnmarshalEvent(data []byte) (*messages.Event, version.Version, error) {
	return c.msgs.Unmarshal(data)
}

// Query returns a path query context over el as seen in version v.
func (c *Codec) Query(el *objects.Element, v version.Version) *query.Context {
	return query.New(el, v, c.reg)
}
