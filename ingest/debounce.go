package ingest

type debounceEntry struct {
	key string
	ts  int64
}

// payloadDebounce rejects notifications whose raw payload was already seen
// within the duplicate window. It is a fixed-capacity keyed cache: entries
// are tracked in observation order so that expired entries leave first and
// the oldest live entry is evicted when the cache is over capacity.
type payloadDebounce struct {
	windowMS int64
	retainMS int64
	capacity int

	seen  map[string]int64
	order []debounceEntry
}

func newPayloadDebounce(windowMS int64, capacity int) *payloadDebounce {
	if capacity < 1 {
		capacity = 1
	}
	return &payloadDebounce{
		windowMS: windowMS,
		retainMS: 8 * windowMS,
		capacity: capacity,
		seen:     make(map[string]int64, capacity),
	}
}

// observe reports whether the payload key is a duplicate at ts. Duplicates
// do not refresh the recorded observation time; only accepted payloads do.
func (d *payloadDebounce) observe(key string, ts int64) bool {
	if last, ok := d.seen[key]; ok && ts-last < d.windowMS {
		return true
	}

	d.seen[key] = ts
	d.order = append(d.order, debounceEntry{key: key, ts: ts})
	d.trim(ts)
	return false
}

// trim drops entries from the front of the observation order: stale entries
// superseded by a newer observation of the same key, entries past their
// retention time, and then the oldest live entries while the cache remains
// over capacity.
func (d *payloadDebounce) trim(now int64) {
	for len(d.order) > 0 {
		head := d.order[0]
		stale := d.seen[head.key] != head.ts
		expired := now-head.ts >= d.retainMS

		if !stale && !expired && len(d.seen) <= d.capacity {
			break
		}

		d.order = d.order[1:]
		if !stale {
			delete(d.seen, head.key)
		}
	}
}

func (d *payloadDebounce) len() int {
	return len(d.seen)
}

func (d *payloadDebounce) reset() {
	d.seen = make(map[string]int64, d.capacity)
	d.order = nil
}
