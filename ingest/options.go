package ingest

import (
	"log/slog"
	"time"

	"github.com/sandrayoe/mms-version2/internal/log"
)

// Config holds the pipeline tuning values. Zero fields are replaced with
// defaults when the pipeline is constructed; BinWidth zero is meaningful and
// disables binning.
type Config struct {
	// IdleValue is the baseline subtracted from raw values before taking the
	// absolute value to form a magnitude.
	IdleValue int

	// DefaultSampleInterval is the per-sample spacing used when the measured
	// inter-notification gap is unusable.
	DefaultSampleInterval time.Duration

	// MinSampleInterval and MaxSampleInterval bound the measured per-sample
	// interval; values outside fall back to DefaultSampleInterval.
	MinSampleInterval time.Duration
	MaxSampleInterval time.Duration

	// DupWindow is how long an identical payload suppresses the whole
	// notification. DebounceCap bounds the suppression cache.
	DupWindow   time.Duration
	DebounceCap int

	// ProcessInterval and BatchPerTick set the raw-queue drain cadence and
	// per-tick notification budget. RawCap bounds the raw queue.
	ProcessInterval time.Duration
	BatchPerTick    int
	RawCap          int

	// PendingCap bounds the pending-pair queue.
	PendingCap int

	// DrainInterval, MaxDrainPerTick, and DrainChunkSize set the pending-pair
	// drain cadence, per-tick pair budget, and sub-chunk size.
	DrainInterval   time.Duration
	MaxDrainPerTick int
	DrainChunkSize  int

	// BinWidth enables time-binned aggregation of delivered batches when
	// positive.
	BinWidth time.Duration

	// LiveCap bounds the live sample store backing the display stream.
	LiveCap int

	// SubscriberBuffer is the per-subscriber batch buffer; full subscribers
	// lose batches rather than stalling the drain.
	SubscriberBuffer int
}

func withDefaults(cfg Config) Config {
	if cfg.IdleValue == 0 {
		cfg.IdleValue = 2048
	}
	if cfg.DefaultSampleInterval == 0 {
		cfg.DefaultSampleInterval = 20 * time.Millisecond
	}
	if cfg.MinSampleInterval == 0 {
		cfg.MinSampleInterval = 5 * time.Millisecond
	}
	if cfg.MaxSampleInterval == 0 {
		cfg.MaxSampleInterval = 10 * time.Second
	}
	if cfg.DupWindow == 0 {
		cfg.DupWindow = 250 * time.Millisecond
	}
	if cfg.DebounceCap == 0 {
		cfg.DebounceCap = 256
	}
	if cfg.ProcessInterval == 0 {
		cfg.ProcessInterval = 12 * time.Millisecond
	}
	if cfg.BatchPerTick == 0 {
		cfg.BatchPerTick = 4
	}
	if cfg.RawCap == 0 {
		cfg.RawCap = 512
	}
	if cfg.PendingCap == 0 {
		cfg.PendingCap = 2000
	}
	if cfg.DrainInterval == 0 {
		cfg.DrainInterval = 33 * time.Millisecond
	}
	if cfg.MaxDrainPerTick == 0 {
		cfg.MaxDrainPerTick = 256
	}
	if cfg.DrainChunkSize == 0 {
		cfg.DrainChunkSize = 64
	}
	if cfg.LiveCap == 0 {
		cfg.LiveCap = 4096
	}
	if cfg.SubscriberBuffer == 0 {
		cfg.SubscriberBuffer = 8
	}
	return cfg
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces the whole pipeline configuration at once.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) {
		p.cfg = cfg
	}
}

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.log = pipelineLogger{log.Wrap(logger)}
	}
}

// WithIdleValue sets the magnitude baseline.
func WithIdleValue(idleValue int) Option {
	return func(p *Pipeline) {
		p.cfg.IdleValue = idleValue
	}
}

// WithSampleIntervals sets the fallback per-sample interval and the accepted
// measured range.
func WithSampleIntervals(def, min, max time.Duration) Option {
	return func(p *Pipeline) {
		p.cfg.DefaultSampleInterval = def
		p.cfg.MinSampleInterval = min
		p.cfg.MaxSampleInterval = max
	}
}

// WithDupWindow sets the payload debounce window.
func WithDupWindow(window time.Duration) Option {
	return func(p *Pipeline) {
		p.cfg.DupWindow = window
	}
}

// WithDebounceCap sets the payload debounce cache capacity.
func WithDebounceCap(capacity int) Option {
	return func(p *Pipeline) {
		p.cfg.DebounceCap = capacity
	}
}

// WithProcessCadence sets the raw-queue drain interval and per-tick budget.
func WithProcessCadence(interval time.Duration, batchPerTick int) Option {
	return func(p *Pipeline) {
		p.cfg.ProcessInterval = interval
		p.cfg.BatchPerTick = batchPerTick
	}
}

// WithRawCap sets the raw-notification queue capacity.
func WithRawCap(capacity int) Option {
	return func(p *Pipeline) {
		p.cfg.RawCap = capacity
	}
}

// WithPendingCap sets the pending-pair queue capacity.
func WithPendingCap(capacity int) Option {
	return func(p *Pipeline) {
		p.cfg.PendingCap = capacity
	}
}

// WithDrainCadence sets the pending-pair drain interval, per-tick pair
// budget, and sub-chunk size.
func WithDrainCadence(interval time.Duration, maxPerTick, chunkSize int) Option {
	return func(p *Pipeline) {
		p.cfg.DrainInterval = interval
		p.cfg.MaxDrainPerTick = maxPerTick
		p.cfg.DrainChunkSize = chunkSize
	}
}

// WithBinWidth enables time-binned aggregation with the given bucket width.
// A non-positive width disables binning.
func WithBinWidth(width time.Duration) Option {
	return func(p *Pipeline) {
		p.cfg.BinWidth = width
	}
}

// WithLiveCap sets the live sample store capacity.
func WithLiveCap(capacity int) Option {
	return func(p *Pipeline) {
		p.cfg.LiveCap = capacity
	}
}

// WithSubscriberBuffer sets the per-subscriber batch buffer size.
func WithSubscriberBuffer(size int) Option {
	return func(p *Pipeline) {
		p.cfg.SubscriberBuffer = size
	}
}
