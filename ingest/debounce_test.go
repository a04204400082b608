package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebounceSuppressesWithinWindow(t *testing.T) {
	d := newPayloadDebounce(250, 8)

	require.False(t, d.observe("a", 1000))
	require.True(t, d.observe("a", 1100))
}

func TestDebounceAcceptsAfterWindow(t *testing.T) {
	d := newPayloadDebounce(250, 8)

	require.False(t, d.observe("a", 1000))
	require.False(t, d.observe("a", 1300))
}

func TestDebounceDuplicateDoesNotRefreshWindow(t *testing.T) {
	d := newPayloadDebounce(250, 8)

	require.False(t, d.observe("a", 1000))
	require.True(t, d.observe("a", 1200))

	// Measured from the accepted observation at 1000, not the duplicate at
	// 1200.
	require.False(t, d.observe("a", 1300))
}

func TestDebounceEvictsOldestOverCapacity(t *testing.T) {
	d := newPayloadDebounce(250, 2)

	require.False(t, d.observe("a", 1000))
	require.False(t, d.observe("b", 1001))
	require.False(t, d.observe("c", 1002))
	require.Equal(t, 2, d.len())

	// "a" was evicted, so an immediate repeat is no longer a duplicate.
	require.False(t, d.observe("a", 1003))
}

func TestDebounceExpiresOldEntries(t *testing.T) {
	d := newPayloadDebounce(250, 8)

	require.False(t, d.observe("a", 1000))
	require.False(t, d.observe("b", 3000))
	require.Equal(t, 1, d.len())
}

func TestDebounceStaleEntriesDoNotEvictLiveOnes(t *testing.T) {
	d := newPayloadDebounce(250, 2)

	require.False(t, d.observe("a", 1000))
	require.False(t, d.observe("a", 1300))
	require.False(t, d.observe("b", 1301))

	// The superseded observation of "a" at the front of the order must not
	// count against capacity or delete the live entry.
	require.Equal(t, 2, d.len())
	require.True(t, d.observe("a", 1400))
	require.True(t, d.observe("b", 1400))
}

func TestDebounceReset(t *testing.T) {
	d := newPayloadDebounce(250, 8)
	require.False(t, d.observe("a", 1000))

	d.reset()

	require.Zero(t, d.len())
	require.False(t, d.observe("a", 1001))
}
