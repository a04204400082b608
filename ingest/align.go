package ingest

import "slices"

// alignPairs intersects the two channels' timestamp sets and emits one pair
// per common timestamp, ascending. Within a channel, a later sample with a
// colliding rounded timestamp overwrites the earlier one. Timestamps present
// on only one channel are dropped; synchronized pair integrity wins over
// sample completeness.
func alignPairs(ts1 []int64, v1 []float64, ts2 []int64, v2 []float64) []AlignedPair {
	if len(ts1) == 0 || len(ts2) == 0 {
		return nil
	}

	m1 := make(map[int64]float64, len(ts1))
	for i, t := range ts1 {
		m1[t] = v1[i]
	}
	m2 := make(map[int64]float64, len(ts2))
	for i, t := range ts2 {
		m2[t] = v2[i]
	}

	common := make([]int64, 0, min(len(m1), len(m2)))
	for t := range m1 {
		if _, ok := m2[t]; ok {
			common = append(common, t)
		}
	}
	slices.Sort(common)

	pairs := make([]AlignedPair, len(common))
	for i, t := range common {
		pairs[i] = AlignedPair{TS: t, S1: m1[t], S2: m2[t]}
	}
	return pairs
}
