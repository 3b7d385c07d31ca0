package bloomgo

import (
	"log/slog"
	"time"
)

// DefaultMaxBufferBytes caps how large a slot buffer a load is willing to
// allocate before it returns ErrOutOfMemory. 4 GiB covers every practical
// filter while stopping corrupt headers from exhausting memory.
const DefaultMaxBufferBytes = uint64(4) << 30

type options struct {
	name             string
	hasher           Hasher
	hasherSet        bool
	counterWidth     CounterWidth
	timestampWidth   TimestampWidth
	now              func() time.Time
	maxBufferBytes   uint64
	readOnly         bool
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures filter constructor/load behavior.
//
// Options primarily exist to avoid exploding the API surface
// (e.g. width-specific constructor variants).
type Option func(*options)

// WithName assigns a human-readable name to the filter. The name is stored
// in the serialized header (up to 255 bytes) and is purely descriptive.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithHasher configures the hash function used to derive slot positions.
//
// If nil is passed, the default Murmur3Hasher is used. Filters serialized
// with a custom hasher must be loaded with the same hasher, otherwise
// lookups are meaningless.
func WithHasher(h Hasher) Option {
	return func(o *options) {
		if h == nil {
			h = Murmur3Hasher{}
		}
		o.hasher = h
		o.hasherSet = true
	}
}

// WithCounterWidth configures the per-slot counter width for counting
// variants.
//
// Wider counters raise the saturation ceiling at the cost of memory:
//
//   - CounterWidth4: 2 slots per byte, counts up to 15
//   - CounterWidth8: 1 byte per slot, counts up to 255
//   - CounterWidth16/32/64: for heavy-hitter workloads
//
// DecayingCountingFilter rejects CounterWidth4; its counters are byte
// aligned.
func WithCounterWidth(w CounterWidth) Option {
	return func(o *options) {
		o.counterWidth = w
	}
}

// WithTimestampWidth overrides the per-slot timestamp width for decaying
// variants. By default the narrowest width whose wheel period exceeds the
// timeout is chosen, so most callers never set this.
func WithTimestampWidth(w TimestampWidth) Option {
	return func(o *options) {
		o.timestampWidth = w
	}
}

// WithTimeSource replaces the wall clock used by decaying variants.
// Intended for tests that need deterministic expiry and wraparound.
func WithTimeSource(now func() time.Time) Option {
	return func(o *options) {
		if now == nil {
			now = time.Now
		}
		o.now = now
	}
}

// WithMaxBufferBytes overrides the allocation guard checked while loading
// serialized filters. Loads whose declared buffer exceeds the limit fail
// with ErrOutOfMemory before any allocation happens.
func WithMaxBufferBytes(n uint64) Option {
	return func(o *options) {
		if n == 0 {
			n = DefaultMaxBufferBytes
		}
		o.maxBufferBytes = n
	}
}

// WithReadOnly marks a plain Bloom filter as read-only at load time.
// Lookups work as usual; Add and Clear become no-ops, LookupOrAdd degrades
// to Lookup, and mutations that report errors return ErrReadOnly.
//
// Read-only mode exists for query serving over borrowed buffers, such as
// memory-mapped files where the backing pages cannot be written. Only the
// plain variant supports it; the other variants reject the option.
func WithReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bloomgo.BasicMetricsCollector{}
//	bf, _ := bloomgo.NewBloomFilter(10000, 0.01, bloomgo.WithMetricsCollector(metrics))
//	// ... use bf ...
//	stats := metrics.GetStats()
//	fmt.Printf("Adds: %d, Lookup hits: %d\n", stats.AddCount, stats.LookupHits)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := bloomgo.NewJSONLogger(slog.LevelInfo)
//	bf, _ := bloomgo.NewBloomFilter(10000, 0.01, bloomgo.WithLogger(logger))
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

// rejectReadOnly guards variants that cannot honor WithReadOnly.
func (o options) rejectReadOnly() error {
	if o.readOnly {
		return &ParameterError{Param: "readOnly", Reason: "only plain Bloom filters support read-only mode"}
	}
	return nil
}

func applyOptions(optFns []Option) options {
	o := options{
		hasher:           Murmur3Hasher{},
		counterWidth:     CounterWidth8,
		now:              time.Now,
		maxBufferBytes:   DefaultMaxBufferBytes,
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
