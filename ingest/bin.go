package ingest

import (
	"slices"
	"time"
)

type binAccumulator struct {
	sumTime  float64
	sumValue float64
	count    int
	min      float64
	max      float64
}

// Bin aggregates time-ordered samples into fixed-width buckets keyed by
// floor(ts/width), emitted in ascending key order. Each bucket carries the
// mean time and value plus the count, minimum and maximum for fidelity. A
// non-positive width turns every sample into its own bucket.
func Bin(samples []Sample, width time.Duration) []BinnedPoint {
	if len(samples) == 0 {
		return nil
	}

	widthMS := int64(width / time.Millisecond)
	if widthMS <= 0 {
		points := make([]BinnedPoint, len(samples))
		for i, s := range samples {
			points[i] = BinnedPoint{
				Time:  float64(s.TS),
				Avg:   s.Value,
				Count: 1,
				Min:   s.Value,
				Max:   s.Value,
			}
		}
		return points
	}

	bins := make(map[int64]*binAccumulator)
	for _, s := range samples {
		key := floorDiv(s.TS, widthMS)
		acc, ok := bins[key]
		if !ok {
			acc = &binAccumulator{min: s.Value, max: s.Value}
			bins[key] = acc
		}
		acc.sumTime += float64(s.TS)
		acc.sumValue += s.Value
		acc.count++
		if s.Value < acc.min {
			acc.min = s.Value
		}
		if s.Value > acc.max {
			acc.max = s.Value
		}
	}

	keys := make([]int64, 0, len(bins))
	for key := range bins {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	points := make([]BinnedPoint, len(keys))
	for i, key := range keys {
		acc := bins[key]
		points[i] = BinnedPoint{
			Time:  acc.sumTime / float64(acc.count),
			Avg:   acc.sumValue / float64(acc.count),
			Count: acc.count,
			Min:   acc.min,
			Max:   acc.max,
		}
	}
	return points
}

// channelSamples splits aligned pairs back into per-channel sample slices.
func channelSamples(pairs []AlignedPair) ([]Sample, []Sample) {
	ch1 := make([]Sample, len(pairs))
	ch2 := make([]Sample, len(pairs))
	for i, p := range pairs {
		ch1[i] = Sample{Value: p.S1, TS: p.TS}
		ch2[i] = Sample{Value: p.S2, TS: p.TS}
	}
	return ch1, ch2
}

// floorDiv rounds the quotient toward negative infinity, keeping bucket keys
// correct for timestamps before the epoch.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
