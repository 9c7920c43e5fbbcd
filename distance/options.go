package distance

import "log/slog"

const (
	DefaultCacheCapacity = 4096
	DefaultBufferKm      = 1.0
)

type options struct {
	capacity int
	bufferKm float64
	fallback Resolver
	log      *slog.Logger
}

func loadOptions(opts ...Option) options {
	o := options{
		capacity: DefaultCacheCapacity,
		bufferKm: DefaultBufferKm,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

type Option interface {
	apply(*options)
}

type cacheCapacity int

func (c cacheCapacity) apply(o *options) {
	o.capacity = int(c)
}

// Default: 4096
func WithCacheCapacity(capacity int) Option {
	return cacheCapacity(capacity)
}

type bufferKm float64

func (b bufferKm) apply(o *options) {
	o.bufferKm = float64(b)
}

// WithBufferKm sets the margin fetched around a routed pair. Default: 1
func WithBufferKm(km float64) Option {
	return bufferKm(km)
}

type fallbackOption struct {
	r Resolver
}

func (f fallbackOption) apply(o *options) {
	o.fallback = f.r
}

// WithFallback answers with r when the road network cannot be fetched. Without
// it such pairs are unreachable.
func WithFallback(r Resolver) Option {
	return fallbackOption{r: r}
}

type loggerOption struct {
	log *slog.Logger
}

func (l loggerOption) apply(o *options) {
	o.log = l.log
}

func WithLogger(log *slog.Logger) Option {
	return loggerOption{log: log}
}
