package ingest

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of the pipeline.
type SessionState byte

const (
	// StateIdle means the sensors are stopped and no data is flowing.
	StateIdle SessionState = iota

	// StateMeasuring means the sensors are started and samples are streaming
	// live without being recorded.
	StateMeasuring

	// StateRecording means drained pairs are additionally appended to the
	// recording buffers.
	StateRecording

	// StatePaused means a recording exists but appends are suspended until
	// the recording is resumed.
	StatePaused
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMeasuring:
		return "measuring"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name, so the state serializes readably in
// JSON reports.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *SessionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "measuring":
		*s = StateMeasuring
	case "recording":
		*s = StateRecording
	case "paused":
		*s = StatePaused
	default:
		return fmt.Errorf("unknown session state %q", text)
	}
	return nil
}

// MarkerType identifies a recording state transition.
type MarkerType byte

const (
	MarkerStart MarkerType = iota
	MarkerStop
	MarkerPause
	MarkerResume
)

func (m MarkerType) String() string {
	switch m {
	case MarkerStart:
		return "start"
	case MarkerStop:
		return "stop"
	case MarkerPause:
		return "pause"
	case MarkerResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Marker is an event correlated to a recording state transition. Time is in
// milliseconds since the Unix epoch.
type Marker struct {
	Time int64
	Type MarkerType
}

// recordingSession accumulates the per-channel sample sequences and the
// marker log of one recording. Buffers are wiped when a new recording starts,
// not when one stops, so a finished recording stays exportable until the next
// one begins or the session resets.
type recordingSession struct {
	id      string
	ch1     []Sample
	ch2     []Sample
	markers []Marker
}

func (r *recordingSession) begin(ts int64) {
	r.id = uuid.NewString()
	r.ch1 = nil
	r.ch2 = nil
	r.markers = []Marker{{Time: ts, Type: MarkerStart}}
}

func (r *recordingSession) mark(ts int64, t MarkerType) {
	r.markers = append(r.markers, Marker{Time: ts, Type: t})
}

func (r *recordingSession) append(p AlignedPair) {
	r.ch1 = append(r.ch1, Sample{Value: p.S1, TS: p.TS})
	r.ch2 = append(r.ch2, Sample{Value: p.S2, TS: p.TS})
}

func (r *recordingSession) reset() {
	r.id = ""
	r.ch1 = nil
	r.ch2 = nil
	r.markers = nil
}

// Recording is a copied-out view of the recording buffers, markers and
// parameter snapshots, safe to read while the pipeline keeps running.
type Recording struct {
	ID        string
	Ch1       []Sample
	Ch2       []Sample
	Markers   []Marker
	Snapshots []ParameterSnapshot
}
