package ingest

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// frame is the decoded form of one notification payload.
type frame struct {
	sensor1 []float64
	sensor2 []float64
	raw1s   []uint16
	raw2s   []uint16
}

// decodeFrame splits a payload into complete 4-byte groups of
// [u16 LE channel-1][u16 LE channel-2] and converts each raw value into a
// magnitude relative to the idle baseline. Trailing bytes that do not form a
// complete group are discarded. The raw values are retained for payload
// hashing.
func decodeFrame(payload []byte, idleValue int) frame {
	groups := len(payload) / 4
	f := frame{
		sensor1: make([]float64, groups),
		sensor2: make([]float64, groups),
		raw1s:   make([]uint16, groups),
		raw2s:   make([]uint16, groups),
	}

	for i := 0; i < groups; i++ {
		r1 := binary.LittleEndian.Uint16(payload[4*i:])
		r2 := binary.LittleEndian.Uint16(payload[4*i+2:])
		f.raw1s[i] = r1
		f.raw2s[i] = r2
		f.sensor1[i] = magnitude(r1, idleValue)
		f.sensor2[i] = magnitude(r2, idleValue)
	}
	return f
}

func magnitude(raw uint16, idleValue int) float64 {
	m := int(raw) - idleValue
	if m < 0 {
		m = -m
	}
	return float64(m)
}

// sampleCount is the notification's sample count for interval estimation,
// never less than one.
func (f frame) sampleCount() int {
	n := max(len(f.sensor1), len(f.sensor2))
	if n < 1 {
		return 1
	}
	return n
}

// payloadKey builds the debounce key from the raw channel values. Payloads
// are judged duplicates on raw-value equality alone.
func (f frame) payloadKey() string {
	var b strings.Builder
	b.Grow(6 * (len(f.raw1s) + len(f.raw2s)))
	writeRaws(&b, f.raw1s)
	b.WriteByte('|')
	writeRaws(&b, f.raw2s)
	return b.String()
}

func writeRaws(b *strings.Builder, raws []uint16) {
	for i, r := range raws {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(r), 10))
	}
}
