package ingest

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sandrayoe/mms-version2/ingest/internal/queue"
	"github.com/sandrayoe/mms-version2/internal/wallclock"
)

// Pipeline turns raw two-channel notification payloads into timestamped,
// aligned sample pairs. Producers hand payloads to Push or PushAt, which
// only enqueue; all decoding, deduplication, and alignment happens on a
// single goroutine started by Start, so the stages never race each other.
// Every queue in the pipeline is lossy: when a stage falls behind, the
// oldest entries are dropped and counted, and ingestion never blocks.
type Pipeline struct {
	cfg Config
	log pipelineLogger

	// raw is the only structure producers touch. It has its own lock,
	// so a receive callback never contends with a drain in progress.
	raw *queue.Ring[rawNotification]

	// pending holds aligned pairs between the processing and drain
	// stages. live is the bounded window served to Live callers.
	pending *queue.Ring[AlignedPair]
	live    *queue.Ring[AlignedPair]

	mu        sync.Mutex
	state     SessionState
	estimator intervalEstimator
	debounce  *payloadDebounce
	rec       recordingSession
	snaps     snapshotIndex

	// lastPair mirrors the most recent pair appended to the live store.
	// A drained pair identical to it is discarded instead of appended.
	lastPair    AlignedPair
	hasLastPair bool

	// stop is non-nil exactly while the run goroutine is active.
	stop chan struct{}
	wg   sync.WaitGroup

	subs  subscriberList
	stats counters
}

// NewPipeline creates a stopped pipeline. Unset config fields are filled
// with defaults after all options have been applied.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	p.cfg = withDefaults(p.cfg)

	p.raw = queue.NewRing[rawNotification](p.cfg.RawCap)
	p.pending = queue.NewRing[AlignedPair](p.cfg.PendingCap)
	p.live = queue.NewRing[AlignedPair](p.cfg.LiveCap)
	p.debounce = newPayloadDebounce(p.cfg.DupWindow.Milliseconds(), p.cfg.DebounceCap)
	p.estimator = intervalEstimator{
		defaultMS: durMS(p.cfg.DefaultSampleInterval),
		minMS:     durMS(p.cfg.MinSampleInterval),
		maxMS:     durMS(p.cfg.MaxSampleInterval),
	}
	return p
}

func durMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Start begins a measurement session and launches the processing loop.
// It returns a StateError if the pipeline is already running. Cancelling
// ctx is equivalent to Stop: the loop exits and the pipeline hard-resets
// to idle, discarding any in-flight data.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return &StateError{Op: "start", State: state}
	}
	p.resetLocked(false)
	p.state = StateMeasuring
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, stop)

	p.log.info(ctx, "pipeline started",
		slog.Duration("process_interval", p.cfg.ProcessInterval),
		slog.Duration("drain_interval", p.cfg.DrainInterval),
	)
	return nil
}

// Stop ends the measurement session. It blocks until the processing loop
// has exited, then hard-resets all state, including any recording in
// progress and the parameter history. Stopping an idle pipeline is a
// no-op.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	p.wg.Wait()

	p.mu.Lock()
	p.resetLocked(true)
	p.state = StateIdle
	p.mu.Unlock()

	p.log.info(context.Background(), "pipeline stopped")
}

// Clear discards all buffered data, the duplicate history, the parameter
// history, and any recording in progress, without ending the session. A
// recording or paused pipeline falls back to measuring.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	p.resetLocked(true)
	p.mu.Unlock()

	p.log.info(context.Background(), "pipeline cleared")
}

// resetLocked wipes every buffer and derived state. The parameter history
// survives unless wipeSnapshots is set, so parameters applied before a
// session starts still describe it. Callers hold p.mu.
func (p *Pipeline) resetLocked(wipeSnapshots bool) {
	p.raw.Clear()
	p.pending.Clear()
	p.live.Clear()
	p.lastPair = AlignedPair{}
	p.hasLastPair = false
	p.estimator.reset()
	p.debounce.reset()
	p.rec.reset()
	if wipeSnapshots {
		p.snaps.reset()
	}
	if p.state == StateRecording || p.state == StatePaused {
		p.state = StateMeasuring
	}
}

func (p *Pipeline) run(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	process := wallclock.Instance.NewTicker(p.cfg.ProcessInterval)
	defer process.Stop()
	drain := wallclock.Instance.NewTicker(p.cfg.DrainInterval)
	defer drain.Stop()

	for {
		select {
		case <-process.C():
			p.processTick(ctx)
		case <-drain.C():
			p.drainTick(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			p.log.info(ctx, "context done; pipeline resetting", slog.Any("cause", context.Cause(ctx)))
			p.mu.Lock()
			p.stop = nil
			p.resetLocked(true)
			p.state = StateIdle
			p.mu.Unlock()
			return
		}
	}
}

// Push enqueues a notification payload stamped with the current wall
// clock time. It never blocks; if the raw queue is full the oldest
// pending notification is dropped to make room.
func (p *Pipeline) Push(payload []byte) {
	p.PushAt(payload, wallclock.Instance.Now())
}

// PushAt enqueues a notification payload with an explicit arrival time.
// The payload is copied, so the caller may reuse its buffer.
func (p *Pipeline) PushAt(payload []byte, arrival time.Time) {
	p.stats.received.Add(1)
	evicted := p.raw.Push(rawNotification{
		payload: bytes.Clone(payload),
		arrival: arrival.UnixMilli(),
	})
	if evicted {
		p.stats.rawDropped.Add(1)
	}
}

// Subscribe registers a live batch consumer. Delivery is lossy: a batch
// is dropped for a subscriber whose channel buffer is full. The returned
// cancel func unregisters the subscriber and closes its channel; it is
// safe to call more than once.
func (p *Pipeline) Subscribe() (<-chan Batch, func()) {
	sub := newSubscriber(p.cfg.SubscriberBuffer)
	remove := p.subs.append(sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			remove()
			sub.close()
		})
	}
	return sub.ch, cancel
}

// StartRecording opens a fresh recording session. Previous recording
// data and markers are discarded; the parameter history is kept.
func (p *Pipeline) StartRecording() error {
	now := wallclock.Instance.Now().UnixMilli()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateMeasuring {
		return &StateError{Op: "start recording", State: p.state}
	}
	p.rec.begin(now)
	p.state = StateRecording

	p.log.info(context.Background(), "recording started", slog.String("id", p.rec.id))
	return nil
}

// StopRecording closes the current recording session. The recorded data
// stays available through Recording until the next session begins.
func (p *Pipeline) StopRecording() error {
	now := wallclock.Instance.Now().UnixMilli()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateRecording && p.state != StatePaused {
		return &StateError{Op: "stop recording", State: p.state}
	}
	p.rec.mark(now, MarkerStop)
	p.state = StateMeasuring

	p.log.info(context.Background(), "recording stopped",
		slog.String("id", p.rec.id),
		slog.Int("pairs", len(p.rec.ch1)),
	)
	return nil
}

// PauseRecording suspends the current recording. Pairs that arrive while
// paused are not buffered and are not recovered on resume.
func (p *Pipeline) PauseRecording() error {
	now := wallclock.Instance.Now().UnixMilli()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateRecording {
		return &StateError{Op: "pause recording", State: p.state}
	}
	p.rec.mark(now, MarkerPause)
	p.state = StatePaused
	return nil
}

// ResumeRecording continues a paused recording.
func (p *Pipeline) ResumeRecording() error {
	now := wallclock.Instance.Now().UnixMilli()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePaused {
		return &StateError{Op: "resume recording", State: p.state}
	}
	p.rec.mark(now, MarkerResume)
	p.state = StateRecording
	return nil
}

// ApplySnapshot records a device parameter set effective at the given
// time. It reports whether the snapshot was stored; a set equal to the
// most recently stored one is suppressed.
func (p *Pipeline) ApplySnapshot(at time.Time, params map[string]string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snaps.apply(at.UnixMilli(), params)
}

// State returns the current session state.
func (p *Pipeline) State() SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Live returns a copy of the live sample window, oldest first.
func (p *Pipeline) Live() []AlignedPair {
	return p.live.Items()
}

// Recording returns a deep copy of the most recent recording session
// together with the parameter snapshots covering it.
func (p *Pipeline) Recording() Recording {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Recording{
		ID:        p.rec.id,
		Ch1:       slices.Clone(p.rec.ch1),
		Ch2:       slices.Clone(p.rec.ch2),
		Markers:   slices.Clone(p.rec.markers),
		Snapshots: p.snaps.copyOut(),
	}
}

// Stats returns a point-in-time snapshot of pipeline counters and queue
// depths.
func (p *Pipeline) Stats() Stats {
	s := p.stats.snapshot()
	s.RawDepth = p.raw.Len()
	s.PendingDepth = p.pending.Len()
	s.LiveLen = p.live.Len()
	s.Subscribers = p.subs.len()

	p.mu.Lock()
	s.Snapshots = p.snaps.len()
	s.State = p.state
	p.mu.Unlock()
	return s
}

// processTick pops up to BatchPerTick notifications off the raw queue
// and runs each through decode, interval estimation, deduplication, and
// alignment. Surviving pairs land on the pending queue.
func (p *Pipeline) processTick(ctx context.Context) {
	for i := 0; i < p.cfg.BatchPerTick; i++ {
		raw, ok := p.raw.Pop()
		if !ok {
			return
		}
		p.handleNotification(ctx, raw)
	}
}

func (p *Pipeline) handleNotification(ctx context.Context, raw rawNotification) {
	// A malformed notification must not take the loop down with it.
	defer func() {
		if r := recover(); r != nil {
			p.stats.decodeFailures.Add(1)
			p.log.warn(ctx, "notification discarded", slog.Any("cause", r))
		}
	}()

	f := decodeFrame(raw.payload, p.cfg.IdleValue)
	p.stats.decoded.Add(1)

	// The estimator sees every notification, duplicates included, so
	// the next measured gap is anchored to the true previous arrival.
	p.mu.Lock()
	interval := p.estimator.next(raw.arrival, f.sampleCount())
	dup := p.debounce.observe(f.payloadKey(), raw.arrival)
	p.mu.Unlock()

	if dup {
		p.stats.debounced.Add(1)
		p.log.debug(ctx, "notification debounced", slog.Int("samples", f.sampleCount()))
		return
	}

	ts1 := stampTimes(raw.arrival, interval, len(f.sensor1))
	ts2 := stampTimes(raw.arrival, interval, len(f.sensor2))
	pairs := alignPairs(ts1, f.sensor1, ts2, f.sensor2)
	if len(pairs) == 0 {
		return
	}
	p.stats.pairsAligned.Add(uint64(len(pairs)))

	for _, pair := range pairs {
		if p.pending.Push(pair) {
			p.stats.pendingDropped.Add(1)
		}
	}
}

// drainTick moves pending pairs into the live store and out to
// subscribers, at most MaxDrainPerTick pairs per tick. Work happens in
// sub-chunks so the pipeline lock is released between chunks and
// lifecycle calls are never starved behind a long drain.
func (p *Pipeline) drainTick(ctx context.Context) {
	budget := p.cfg.MaxDrainPerTick
	for budget > 0 {
		n := min(budget, p.cfg.DrainChunkSize)
		chunk := p.pending.PopN(n)
		if len(chunk) == 0 {
			return
		}
		p.deliver(ctx, chunk)
		budget -= len(chunk)
		if len(chunk) < n {
			return
		}
	}
}

// deliver appends a chunk of drained pairs to the live store and the
// recording buffer, then publishes the survivors to subscribers.
func (p *Pipeline) deliver(ctx context.Context, chunk []AlignedPair) {
	survivors := make([]AlignedPair, 0, len(chunk))

	p.mu.Lock()
	recording := p.state == StateRecording
	for _, pair := range chunk {
		if p.hasLastPair && pair == p.lastPair {
			p.stats.tailDeduped.Add(1)
			continue
		}
		if p.live.Push(pair) {
			p.stats.liveEvicted.Add(1)
		}
		p.lastPair = pair
		p.hasLastPair = true
		if recording {
			p.rec.append(pair)
			p.stats.pairsRecorded.Add(1)
		}
		survivors = append(survivors, pair)
	}
	p.mu.Unlock()

	if len(survivors) == 0 {
		return
	}
	p.stats.pairsDelivered.Add(uint64(len(survivors)))

	batch := Batch{Pairs: survivors}
	if p.cfg.BinWidth > 0 {
		ch1, ch2 := channelSamples(survivors)
		batch.Ch1 = Bin(ch1, p.cfg.BinWidth)
		batch.Ch2 = Bin(ch2, p.cfg.BinWidth)
	}
	p.publish(batch)
}

func (p *Pipeline) publish(b Batch) {
	for s := range p.subs.all() {
		if s.send(b) {
			p.stats.published.Add(1)
		} else {
			p.stats.publishDropped.Add(1)
		}
	}
}
