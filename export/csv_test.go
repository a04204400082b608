package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandrayoe/mms-version2/ingest"
)

func writeAndParse(t *testing.T, rec ingest.Recording) [][]string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rec))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteEmptyRecording(t *testing.T) {
	rows := writeAndParse(t, ingest.Recording{})
	require.Equal(t, [][]string{{"time", "ch1", "ch2", "marker"}}, rows)
}

func TestWriteMergesChannelsSnapshotsAndMarkers(t *testing.T) {
	rec := ingest.Recording{
		ID: "rec-1",
		Ch1: []ingest.Sample{
			{TS: 1000, Value: 10},
			{TS: 1020, Value: 20},
		},
		Ch2: []ingest.Sample{
			{TS: 1000, Value: 55},
			{TS: 1040, Value: 66.5},
		},
		Markers: []ingest.Marker{
			{Time: 1000, Type: ingest.MarkerStart},
			{Time: 1060, Type: ingest.MarkerPause},
			{Time: 1060, Type: ingest.MarkerResume},
			{Time: 1100, Type: ingest.MarkerStop},
		},
		Snapshots: []ingest.ParameterSnapshot{
			{Time: 900, Params: map[string]string{"gain": "1", "mode": "fast"}},
			{Time: 1015, Params: map[string]string{"gain": "2", "mode": "fast"}},
		},
	}

	rows := writeAndParse(t, rec)
	require.Equal(t, [][]string{
		{"time", "ch1", "ch2", "gain", "mode", "marker"},
		{"1000", "10", "55", "1", "fast", "start"},
		{"1020", "20", "", "2", "fast", ""},
		{"1040", "", "66.5", "2", "fast", ""},
		{"1060", "", "", "2", "fast", "pause+resume"},
		{"1100", "", "", "2", "fast", "stop"},
	}, rows)
}

func TestWriteSampleBeforeFirstSnapshotUsesEarliest(t *testing.T) {
	rec := ingest.Recording{
		Ch1: []ingest.Sample{{TS: 500, Value: 1}},
		Ch2: []ingest.Sample{{TS: 500, Value: 2}},
		Snapshots: []ingest.ParameterSnapshot{
			{Time: 900, Params: map[string]string{"gain": "3"}},
		},
	}

	rows := writeAndParse(t, rec)
	require.Equal(t, [][]string{
		{"time", "ch1", "ch2", "gain", "marker"},
		{"500", "1", "2", "3", ""},
	}, rows)
}

func TestWriteWithoutSnapshotsHasNoParameterColumns(t *testing.T) {
	rec := ingest.Recording{
		Ch1: []ingest.Sample{{TS: 10, Value: 4}},
		Ch2: []ingest.Sample{{TS: 10, Value: 5}},
		Markers: []ingest.Marker{
			{Time: 10, Type: ingest.MarkerStart},
		},
	}

	rows := writeAndParse(t, rec)
	require.Equal(t, [][]string{
		{"time", "ch1", "ch2", "marker"},
		{"10", "4", "5", "start"},
	}, rows)
}

func TestWriteKeyMissingFromLaterSnapshotLeavesCellEmpty(t *testing.T) {
	rec := ingest.Recording{
		Ch1: []ingest.Sample{{TS: 100, Value: 1}, {TS: 200, Value: 2}},
		Snapshots: []ingest.ParameterSnapshot{
			{Time: 50, Params: map[string]string{"gain": "1", "notch": "on"}},
			{Time: 150, Params: map[string]string{"gain": "2"}},
		},
	}

	rows := writeAndParse(t, rec)
	require.Equal(t, [][]string{
		{"time", "ch1", "ch2", "gain", "notch", "marker"},
		{"100", "1", "", "1", "on", ""},
		{"200", "2", "", "2", "", ""},
	}, rows)
}
