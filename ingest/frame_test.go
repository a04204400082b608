package ingest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// packPayload packs interleaved channel-1, channel-2 raw values into the
// little-endian wire form.
func packPayload(t *testing.T, raws ...uint16) []byte {
	t.Helper()
	require.Zero(t, len(raws)%2, "raw values must come in channel pairs")

	payload := make([]byte, 2*len(raws))
	for i, r := range raws {
		binary.LittleEndian.PutUint16(payload[2*i:], r)
	}
	return payload
}

func TestDecodeFrameEmptyPayload(t *testing.T) {
	f := decodeFrame(nil, 2048)

	require.Empty(t, f.sensor1)
	require.Empty(t, f.sensor2)
	require.Equal(t, 1, f.sampleCount())
	require.Equal(t, "|", f.payloadKey())
}

func TestDecodeFrameDiscardsTrailingBytes(t *testing.T) {
	full := packPayload(t, 2148, 1948)
	ragged := append(append([]byte{}, full...), 0xAA, 0xBB, 0xCC)

	require.Equal(t, decodeFrame(full, 2048), decodeFrame(ragged, 2048))
	require.Equal(t, 1, decodeFrame(ragged, 2048).sampleCount())
}

func TestDecodeFrameMagnitudes(t *testing.T) {
	tests := []struct {
		raw  uint16
		want float64
	}{
		{raw: 0, want: 2048},
		{raw: 2048, want: 0},
		{raw: 4095, want: 2047},
		{raw: 65535, want: 63487},
	}
	for _, test := range tests {
		f := decodeFrame(packPayload(t, test.raw, test.raw), 2048)
		require.Equal(t, test.want, f.sensor1[0])
		require.Equal(t, test.want, f.sensor2[0])
	}
}

func TestDecodeFrameCustomIdleValue(t *testing.T) {
	f := decodeFrame(packPayload(t, 900, 1100), 1000)

	require.Equal(t, 100.0, f.sensor1[0])
	require.Equal(t, 100.0, f.sensor2[0])
}

func TestPayloadKey(t *testing.T) {
	f := decodeFrame(packPayload(t, 100, 300, 200, 400), 2048)

	require.Equal(t, "100,200|300,400", f.payloadKey())
}
