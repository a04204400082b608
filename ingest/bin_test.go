package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBinGroupsByFixedWidth(t *testing.T) {
	samples := []Sample{
		{Value: 10, TS: 1},
		{Value: 20, TS: 5},
		{Value: 30, TS: 9},
		{Value: 40, TS: 14},
	}

	points := Bin(samples, 10*time.Millisecond)

	require.Equal(t, []BinnedPoint{
		{Time: 5, Avg: 20, Count: 3, Min: 10, Max: 30},
		{Time: 14, Avg: 40, Count: 1, Min: 40, Max: 40},
	}, points)
}

func TestBinZeroWidthPassesSamplesThrough(t *testing.T) {
	samples := []Sample{
		{Value: 10, TS: 1},
		{Value: 20, TS: 5},
	}

	points := Bin(samples, 0)

	require.Equal(t, []BinnedPoint{
		{Time: 1, Avg: 10, Count: 1, Min: 10, Max: 10},
		{Time: 5, Avg: 20, Count: 1, Min: 20, Max: 20},
	}, points)
}

func TestBinEmptyInput(t *testing.T) {
	require.Nil(t, Bin(nil, 10*time.Millisecond))
}

func TestBinNegativeTimestamps(t *testing.T) {
	samples := []Sample{
		{Value: 1, TS: 5},
		{Value: 2, TS: -5},
	}

	points := Bin(samples, 10*time.Millisecond)

	require.Len(t, points, 2)
	require.Equal(t, -5.0, points[0].Time)
	require.Equal(t, 5.0, points[1].Time)
}

func TestChannelSamples(t *testing.T) {
	ch1, ch2 := channelSamples([]AlignedPair{
		{TS: 1, S1: 2, S2: 3},
		{TS: 4, S1: 5, S2: 6},
	})

	require.Equal(t, []Sample{{Value: 2, TS: 1}, {Value: 5, TS: 4}}, ch1)
	require.Equal(t, []Sample{{Value: 3, TS: 1}, {Value: 6, TS: 4}}, ch2)
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{a: 9, b: 10, want: 0},
		{a: 10, b: 10, want: 1},
		{a: 0, b: 10, want: 0},
		{a: -1, b: 10, want: -1},
		{a: -10, b: 10, want: -1},
		{a: -11, b: 10, want: -2},
	}
	for _, test := range tests {
		require.Equal(t, test.want, floorDiv(test.a, test.b))
	}
}
