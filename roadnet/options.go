package roadnet

import "log/slog"

type options struct {
	log     *slog.Logger
	threads int
}

type Option interface {
	apply(*options)
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

type threadsOption int

func (t threadsOption) apply(o *options) {
	o.threads = int(t)
}

// WithThreads sets the number of parallel PBF decoders. Default: GOMAXPROCS.
func WithThreads(threads int) Option {
	return threadsOption(threads)
}
