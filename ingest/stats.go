package ingest

import "sync/atomic"

// counters tracks pipeline activity. Drops are deliberate lossy-backpressure
// outcomes, never errors, and these counts are the only place they surface.
type counters struct {
	received       atomic.Uint64
	rawDropped     atomic.Uint64
	decoded        atomic.Uint64
	decodeFailures atomic.Uint64
	debounced      atomic.Uint64
	pairsAligned   atomic.Uint64
	pendingDropped atomic.Uint64
	pairsDelivered atomic.Uint64
	tailDeduped    atomic.Uint64
	liveEvicted    atomic.Uint64
	pairsRecorded  atomic.Uint64
	published      atomic.Uint64
	publishDropped atomic.Uint64
}

// Stats is a point-in-time snapshot of pipeline counters and depths.
type Stats struct {
	// Counts since the pipeline was created.
	Received       uint64 `json:"received"`
	RawDropped     uint64 `json:"raw_dropped"`
	Decoded        uint64 `json:"decoded"`
	DecodeFailures uint64 `json:"decode_failures"`
	Debounced      uint64 `json:"debounced"`
	PairsAligned   uint64 `json:"pairs_aligned"`
	PendingDropped uint64 `json:"pending_dropped"`
	PairsDelivered uint64 `json:"pairs_delivered"`
	TailDeduped    uint64 `json:"tail_deduped"`
	LiveEvicted    uint64 `json:"live_evicted"`
	PairsRecorded  uint64 `json:"pairs_recorded"`
	Published      uint64 `json:"published"`
	PublishDropped uint64 `json:"publish_dropped"`

	// Current depths and state.
	RawDepth     int          `json:"raw_depth"`
	PendingDepth int          `json:"pending_depth"`
	LiveLen      int          `json:"live_samples"`
	Snapshots    int          `json:"snapshots"`
	Subscribers  int          `json:"subscribers"`
	State        SessionState `json:"state"`
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:       c.received.Load(),
		RawDropped:     c.rawDropped.Load(),
		Decoded:        c.decoded.Load(),
		DecodeFailures: c.decodeFailures.Load(),
		Debounced:      c.debounced.Load(),
		PairsAligned:   c.pairsAligned.Load(),
		PendingDropped: c.pendingDropped.Load(),
		PairsDelivered: c.pairsDelivered.Load(),
		TailDeduped:    c.tailDeduped.Load(),
		LiveEvicted:    c.liveEvicted.Load(),
		PairsRecorded:  c.pairsRecorded.Load(),
		Published:      c.published.Load(),
		PublishDropped: c.publishDropped.Load(),
	}
}
