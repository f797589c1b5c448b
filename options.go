package memcev

import (
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

type config struct {
	poolSize       int
	debug          bool
	logger         *logiface.Logger[*stumpy.Event]
	dialTimeout    time.Duration
	checkTimeout   time.Duration
	requestTimeout time.Duration
}

func defaultConfig() config {
	return config{
		poolSize:       5,
		dialTimeout:    5 * time.Second,
		checkTimeout:   10 * time.Second,
		requestTimeout: 5 * time.Second,
	}
}

// Option configures a Client at construction time, modeled on the
// teacher's functional-options pattern (see the engine package's former
// LoopOption before it was trimmed away entirely).
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithPoolSize sets the fixed number of pooled connections (default 5).
func WithPoolSize(size int) Option {
	return optionFunc(func(c *config) { c.poolSize = size })
}

// WithDebug enables a debug-level structured logger for the loop. Off by
// default, in which case the loop logs nothing. The loop only ever logs at
// error level (a poll failure, or the initial check missing its watchdog);
// it emits no debug-level entries for connects, dispatch or completions.
// Ignored if WithLogger supplied a logger of its own: that logger's level
// governs instead.
func WithDebug(enabled bool) Option {
	return optionFunc(func(c *config) { c.debug = enabled })
}

// WithLogger supplies a pre-built logger instead of the default one New
// would otherwise construct from WithDebug.
func WithLogger(logger *logiface.Logger[*stumpy.Event]) Option {
	return optionFunc(func(c *config) { c.logger = logger })
}

// WithDialTimeout bounds how long the constructor waits for each pool
// connection to establish (default 5s).
func WithDialTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.dialTimeout = d })
}

// WithCheckTimeout bounds how long the constructor waits for the initial
// check round trip, and how long each later Check waits (default 10s),
// mirroring the loop's own check watchdog.
func WithCheckTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.checkTimeout = d })
}

// WithRequestTimeout bounds how long Get/Set wait for their response
// (default 5s).
func WithRequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) { c.requestTimeout = d })
}

func resolveOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(&cfg)
	}
	return cfg
}
