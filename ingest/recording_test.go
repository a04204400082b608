package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordingSessionBegin(t *testing.T) {
	var r recordingSession
	r.begin(100)

	require.NotEmpty(t, r.id)
	require.Empty(t, r.ch1)
	require.Empty(t, r.ch2)
	require.Equal(t, []Marker{{Time: 100, Type: MarkerStart}}, r.markers)
}

func TestRecordingSessionAppend(t *testing.T) {
	var r recordingSession
	r.begin(100)
	r.append(AlignedPair{TS: 7, S1: 1, S2: 2})

	require.Equal(t, []Sample{{Value: 1, TS: 7}}, r.ch1)
	require.Equal(t, []Sample{{Value: 2, TS: 7}}, r.ch2)
}

func TestRecordingSessionBeginWipesPrevious(t *testing.T) {
	var r recordingSession
	r.begin(100)
	r.append(AlignedPair{TS: 7, S1: 1, S2: 2})
	r.mark(200, MarkerStop)
	first := r.id

	r.begin(300)

	require.NotEqual(t, first, r.id)
	require.Empty(t, r.ch1)
	require.Empty(t, r.ch2)
	require.Equal(t, []Marker{{Time: 300, Type: MarkerStart}}, r.markers)
}
