// Package export renders recorded sessions as CSV for offline analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/sandrayoe/mms-version2/ingest"
)

// Write renders a recorded session as CSV. Rows cover the union of both
// channels' sample times and all marker times, ascending; a channel cell is
// empty when that channel has no sample at the row's time. Parameter columns
// are the union of all snapshot keys, sorted lexicographically, and resolve
// per row to the snapshot in effect at the row's time. Markers land on the
// row whose time equals theirs, joined with "+" when several coincide.
func Write(w io.Writer, rec ingest.Recording) error {
	cw := csv.NewWriter(w)

	cols := paramColumns(rec.Snapshots)
	header := make([]string, 0, len(cols)+4)
	header = append(header, "time", "ch1", "ch2")
	header = append(header, cols...)
	header = append(header, "marker")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}

	ch1 := valuesByTime(rec.Ch1)
	ch2 := valuesByTime(rec.Ch2)
	markers := markersByTime(rec.Markers)
	cursor := ingest.NewSnapshotCursor(rec.Snapshots)

	row := make([]string, len(header))
	for _, t := range rowTimes(rec) {
		row[0] = strconv.FormatInt(t, 10)
		row[1] = formatValue(ch1, t)
		row[2] = formatValue(ch2, t)

		params, _ := cursor.At(t)
		for i, col := range cols {
			row[3+i] = params[col]
		}
		row[len(row)-1] = strings.Join(markers[t], "+")

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// paramColumns is the sorted union of keys across all snapshots.
func paramColumns(snaps []ingest.ParameterSnapshot) []string {
	set := make(map[string]struct{})
	for _, s := range snaps {
		for k := range s.Params {
			set[k] = struct{}{}
		}
	}
	cols := slices.Collect(maps.Keys(set))
	slices.Sort(cols)
	return cols
}

// rowTimes is the sorted union of sample and marker times. Duplicate times
// collapse to one row.
func rowTimes(rec ingest.Recording) []int64 {
	set := make(map[int64]struct{}, len(rec.Ch1))
	for _, s := range rec.Ch1 {
		set[s.TS] = struct{}{}
	}
	for _, s := range rec.Ch2 {
		set[s.TS] = struct{}{}
	}
	for _, m := range rec.Markers {
		set[m.Time] = struct{}{}
	}
	times := slices.Collect(maps.Keys(set))
	slices.Sort(times)
	return times
}

func valuesByTime(samples []ingest.Sample) map[int64]float64 {
	m := make(map[int64]float64, len(samples))
	for _, s := range samples {
		m[s.TS] = s.Value
	}
	return m
}

func markersByTime(markers []ingest.Marker) map[int64][]string {
	m := make(map[int64][]string, len(markers))
	for _, marker := range markers {
		m[marker.Time] = append(m[marker.Time], marker.Type.String())
	}
	return m
}

func formatValue(m map[int64]float64, t int64) string {
	v, ok := m[t]
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
