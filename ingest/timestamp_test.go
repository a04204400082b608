package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEstimator() intervalEstimator {
	return intervalEstimator{defaultMS: 20, minMS: 5, maxMS: 10000}
}

func TestIntervalEstimatorFirstNotification(t *testing.T) {
	e := newTestEstimator()

	require.Equal(t, 20.0, e.next(1000, 5))
}

func TestIntervalEstimatorMeasuredGap(t *testing.T) {
	e := newTestEstimator()
	e.next(1000, 1)

	require.Equal(t, 50.0, e.next(1100, 2))
}

func TestIntervalEstimatorRejectsTooFast(t *testing.T) {
	e := newTestEstimator()
	e.next(1000, 1)

	// 8ms over 2 samples is below the plausible floor.
	require.Equal(t, 20.0, e.next(1008, 2))
}

func TestIntervalEstimatorRejectsTooSlow(t *testing.T) {
	e := newTestEstimator()
	e.next(0, 1)

	// The ceiling is exclusive.
	require.Equal(t, 20.0, e.next(10000, 1))

	e.reset()
	e.next(0, 1)
	require.Equal(t, 9999.0, e.next(9999, 1))
}

func TestIntervalEstimatorAnchorAdvancesEveryCall(t *testing.T) {
	e := newTestEstimator()
	e.next(1000, 1)
	e.next(1100, 1)

	// The gap is measured from the previous call, not the previous accepted
	// interval.
	require.Equal(t, 50.0, e.next(1150, 1))
}

func TestIntervalEstimatorReset(t *testing.T) {
	e := newTestEstimator()
	e.next(1000, 1)
	e.reset()

	require.Equal(t, 20.0, e.next(1100, 1))
}

func TestStampTimes(t *testing.T) {
	require.Equal(t, []int64{960, 980, 1000}, stampTimes(1000, 20, 3))
	require.Equal(t, []int64{1000}, stampTimes(1000, 20, 1))
	require.Empty(t, stampTimes(1000, 20, 0))
}

func TestStampTimesRoundsToNearestMillisecond(t *testing.T) {
	require.Equal(t, []int64{995, 998, 1000}, stampTimes(1000, 2.5, 3))
}
