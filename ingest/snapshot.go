package ingest

import "maps"

// ParameterSnapshot captures the device configuration in effect from Time
// onward. Time is in milliseconds since the Unix epoch.
type ParameterSnapshot struct {
	Time   int64
	Params map[string]string
}

// snapshotIndex is the append-only, time-ascending list of parameter
// snapshots. Insertion times are expected to be non-decreasing.
type snapshotIndex struct {
	snaps []ParameterSnapshot
}

// apply appends a snapshot unless its params are field-for-field identical
// to the last stored snapshot. The map is copied on insertion.
func (x *snapshotIndex) apply(ts int64, params map[string]string) bool {
	if n := len(x.snaps); n > 0 && maps.Equal(x.snaps[n-1].Params, params) {
		return false
	}
	x.snaps = append(x.snaps, ParameterSnapshot{
		Time:   ts,
		Params: maps.Clone(params),
	})
	return true
}

func (x *snapshotIndex) len() int {
	return len(x.snaps)
}

func (x *snapshotIndex) reset() {
	x.snaps = nil
}

// copyOut returns an aliased-map copy of the snapshot list. The maps are
// shared; callers must treat them as read-only.
func (x *snapshotIndex) copyOut() []ParameterSnapshot {
	if len(x.snaps) == 0 {
		return nil
	}
	out := make([]ParameterSnapshot, len(x.snaps))
	copy(out, x.snaps)
	return out
}

// SnapshotCursor resolves the parameters in effect at ascending sample times
// by walking a time-sorted snapshot list with a single monotonically
// advancing pointer. A time before the first snapshot resolves to the
// earliest snapshot; an empty list resolves to nothing.
type SnapshotCursor struct {
	snaps []ParameterSnapshot
	at    int
}

// NewSnapshotCursor creates a cursor over a time-sorted snapshot list.
func NewSnapshotCursor(snaps []ParameterSnapshot) *SnapshotCursor {
	return &SnapshotCursor{snaps: snaps}
}

// At returns the parameters in effect at time t. Calls must be made with
// non-decreasing t; the cursor never rewinds.
func (c *SnapshotCursor) At(t int64) (map[string]string, bool) {
	if len(c.snaps) == 0 {
		return nil, false
	}
	for c.at+1 < len(c.snaps) && c.snaps[c.at+1].Time <= t {
		c.at++
	}
	if c.snaps[c.at].Time <= t {
		return c.snaps[c.at].Params, true
	}
	return c.snaps[0].Params, true
}
