package ingest

import "math"

// intervalEstimator derives the per-sample spacing of a notification from the
// gap to the previous notification's arrival. Gaps that divide into an
// implausible spacing fall back to the configured default.
type intervalEstimator struct {
	defaultMS float64
	minMS     float64
	maxMS     float64

	last    int64
	hasLast bool
}

// next returns the per-sample interval in milliseconds for a notification
// arriving at baseTs. The previous arrival is updated unconditionally, so a
// notification later discarded as a duplicate still anchors the next gap.
func (e *intervalEstimator) next(baseTs int64, sampleCount int) float64 {
	interval := e.defaultMS
	if e.hasLast {
		measured := float64(baseTs-e.last) / float64(sampleCount)
		if measured >= e.minMS && measured < e.maxMS {
			interval = measured
		}
	}
	e.last = baseTs
	e.hasLast = true
	return interval
}

func (e *intervalEstimator) reset() {
	e.last = 0
	e.hasLast = false
}

// stampTimes assigns a timestamp to each of n samples so that the last sample
// lands exactly on baseTs and earlier samples recede backward at the given
// interval. Timestamps are rounded to the nearest millisecond.
func stampTimes(baseTs int64, interval float64, n int) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = int64(math.Round(float64(baseTs) - float64(n-1-i)*interval))
	}
	return ts
}
