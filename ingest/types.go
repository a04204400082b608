// Package ingest turns raw sensor notifications into a time-ordered,
// duplicate-free stream of paired samples suitable for live display and
// recording.
package ingest

// Sample is a single processed value on one channel. TS is in milliseconds
// since the Unix epoch.
type Sample struct {
	Value float64
	TS    int64
}

// AlignedPair is a timestamp-matched tuple of one sample from each channel.
// TS exists in both channels' synthesized timestamp sets for the notification
// that produced it.
type AlignedPair struct {
	TS int64
	S1 float64
	S2 float64
}

// BinnedPoint is a fixed-width time bucket aggregated over samples. Time and
// Avg are the mean sample time and value within the bin.
type BinnedPoint struct {
	Time  float64
	Avg   float64
	Count int
	Min   float64
	Max   float64
}

// Batch is one drained sub-chunk delivered to subscribers. Ch1 and Ch2 are
// only populated when binning is enabled. Consecutive batches may each
// contribute a bin covering overlapping real time, so consumers must treat a
// batch's bins as additive partitions of the timeline, not exclusive ones.
type Batch struct {
	Pairs []AlignedPair
	Ch1   []BinnedPoint
	Ch2   []BinnedPoint
}

// rawNotification is one delivery of bytes from the transport, stamped at the
// moment it was received.
type rawNotification struct {
	payload []byte
	arrival int64
}
