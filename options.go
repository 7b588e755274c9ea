package resdb

import (
	"log/slog"

	"github.com/hupe1980/resdb/blobstore"
	"github.com/hupe1980/resdb/cache"
	"github.com/hupe1980/resdb/codec"
	"github.com/hupe1980/resdb/registry"
	"github.com/hupe1980/resdb/resource"
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	blockCache       cache.BlockCache
	cacheCapacity    int64
	resources        *resource.Controller
	store            blobstore.Store
	stageDir         string
	catalogCachePath string
	registry         registry.Registry
}

// Option configures Extractor constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. store-specific constructor variants).
type Option func(*options)

// WithCodec configures the codec used for catalog-cache records.
//
// If nil is passed, codec.Default is used. Existing cache records name
// the codec they were written with and keep decoding regardless.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithBlockCache configures the cache that holds released payload blocks.
// Released blocks demote into the cache and a later materialization of the
// same block adopts the cached copy instead of re-reading the file.
func WithBlockCache(c cache.BlockCache) Option {
	return func(o *options) {
		o.blockCache = c
	}
}

// WithCacheCapacity configures a byte-bounded LRU block cache.
// Convenience wrapper for WithBlockCache(cache.NewLRU(capacity, rc))
// that shares the extractor's resource controller.
//
// If capacity <= 0, no cache is attached and released blocks are dropped.
func WithCacheCapacity(capacity int64) Option {
	return func(o *options) {
		o.cacheCapacity = capacity
	}
}

// WithResourceController configures the controller that tracks and limits
// memory held by materialized blocks, background staging concurrency, and
// staging IO throughput. Pass nil to enforce nothing.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithResourceLimits builds a resource controller from cfg and sets it.
// Convenience wrapper for WithResourceController(resource.NewController(cfg)).
//
// Example:
//
//	ex, _ := resdb.New(resdb.WithResourceLimits(resource.Config{
//	    MemoryLimitBytes:     512 << 20,
//	    MaxBackgroundWorkers: 4,
//	}))
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = resource.NewController(cfg)
	}
}

// WithStore configures the blob store holding remote result files.
// With a store configured, references without a scheme are treated as
// store keys; without one, only local paths can be added.
func WithStore(s blobstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithStageDir configures the directory remote and compressed files are
// staged into. Empty means a fresh temp directory owned by the extractor
// and removed on Close. A shared fixed directory lets extractor restarts
// reuse staged copies.
func WithStageDir(dir string) Option {
	return func(o *options) {
		o.stageDir = dir
	}
}

// WithCatalogCache configures a persistent catalog cache at path. Parsed
// catalogs are stored keyed by file identity, so reopening an unchanged
// file skips the full catalog parse. The path is created on first use.
func WithCatalogCache(path string) Option {
	return func(o *options) {
		o.catalogCachePath = path
	}
}

// WithRegistry configures the run registry used by AddRun to resolve a
// solver run id to its result-file keys.
func WithRegistry(r registry.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &resdb.BasicMetricsCollector{}
//	ex, _ := resdb.New(resdb.WithMetricsCollector(metrics))
//	// ... use ex ...
//	stats := metrics.GetStats()
//	fmt.Printf("Files: %d, Avg latency: %dns\n", stats.AddFileCount, stats.AddFileAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := resdb.NewJSONLogger(slog.LevelInfo)
//	ex, _ := resdb.New(resdb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            nil,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
