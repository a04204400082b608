package stream

import (
	"time"

	"github.com/sandrayoe/mms-version2/ingest"
	"github.com/sandrayoe/mms-version2/iso"
)

// envelopeTypeBatch is the only frame type the hub currently emits.
const envelopeTypeBatch = "batch"

// Envelope is one JSON frame sent to stream clients. Seq increases by one
// per broadcast frame, so a gap tells the client it missed frames.
type Envelope struct {
	Type    string       `json:"type"`
	Seq     uint64       `json:"seq"`
	Emitted iso.DateTime `json:"emitted"`
	Pairs   []Pair       `json:"pairs"`
	Ch1     []Point      `json:"ch1,omitempty"`
	Ch2     []Point      `json:"ch2,omitempty"`
}

// Pair is one aligned sample pair on the wire. TS is milliseconds since the
// Unix epoch.
type Pair struct {
	TS int64   `json:"ts"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
}

// Point is one aggregated time bin on the wire.
type Point struct {
	Time  float64 `json:"time"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func newEnvelope(seq uint64, emitted time.Time, b ingest.Batch) Envelope {
	env := Envelope{
		Type:    envelopeTypeBatch,
		Seq:     seq,
		Emitted: iso.DateTime(emitted),
		Pairs:   make([]Pair, len(b.Pairs)),
		Ch1:     wirePoints(b.Ch1),
		Ch2:     wirePoints(b.Ch2),
	}
	for i, p := range b.Pairs {
		env.Pairs[i] = Pair{TS: p.TS, S1: p.S1, S2: p.S2}
	}
	return env
}

func wirePoints(bins []ingest.BinnedPoint) []Point {
	if len(bins) == 0 {
		return nil
	}
	points := make([]Point, len(bins))
	for i, b := range bins {
		points[i] = Point{
			Time:  b.Time,
			Avg:   b.Avg,
			Count: b.Count,
			Min:   b.Min,
			Max:   b.Max,
		}
	}
	return points
}
