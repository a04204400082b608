// Package metrics exposes pipeline counters and depths as Prometheus
// metrics. Values are read from a Stats snapshot at scrape time, so the
// pipeline carries no metrics dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandrayoe/mms-version2/ingest"
)

// StatsSource yields a point-in-time snapshot of pipeline counters.
type StatsSource interface {
	Stats() ingest.Stats
}

// sessionStates lists every state the one-hot state gauge reports.
var sessionStates = []ingest.SessionState{
	ingest.StateIdle,
	ingest.StateMeasuring,
	ingest.StateRecording,
	ingest.StatePaused,
}

type statMetric struct {
	desc  *prometheus.Desc
	typ   prometheus.ValueType
	value func(ingest.Stats) float64
}

// Collector reads one Stats snapshot per scrape and reports it as constant
// metrics.
type Collector struct {
	source  StatsSource
	metrics []statMetric
	state   *prometheus.Desc
}

// NewCollector returns a collector over the given stats source.
func NewCollector(source StatsSource) *Collector {
	counter := func(name, help string, value func(ingest.Stats) float64) statMetric {
		return statMetric{
			desc:  prometheus.NewDesc(name, help, nil, nil),
			typ:   prometheus.CounterValue,
			value: value,
		}
	}
	gauge := func(name, help string, value func(ingest.Stats) float64) statMetric {
		return statMetric{
			desc:  prometheus.NewDesc(name, help, nil, nil),
			typ:   prometheus.GaugeValue,
			value: value,
		}
	}

	return &Collector{
		source: source,
		metrics: []statMetric{
			counter("mms_ingest_notifications_received_total",
				"Raw notifications accepted from the transport.",
				func(s ingest.Stats) float64 { return float64(s.Received) }),
			counter("mms_ingest_raw_dropped_total",
				"Notifications evicted from the raw queue before decoding.",
				func(s ingest.Stats) float64 { return float64(s.RawDropped) }),
			counter("mms_ingest_notifications_decoded_total",
				"Notifications decoded into sample frames.",
				func(s ingest.Stats) float64 { return float64(s.Decoded) }),
			counter("mms_ingest_decode_failures_total",
				"Notifications abandoned by a decode recovery.",
				func(s ingest.Stats) float64 { return float64(s.DecodeFailures) }),
			counter("mms_ingest_debounced_total",
				"Notifications suppressed as payload duplicates.",
				func(s ingest.Stats) float64 { return float64(s.Debounced) }),
			counter("mms_ingest_pairs_aligned_total",
				"Aligned pairs produced from decoded frames.",
				func(s ingest.Stats) float64 { return float64(s.PairsAligned) }),
			counter("mms_ingest_pending_dropped_total",
				"Aligned pairs evicted from the pending queue.",
				func(s ingest.Stats) float64 { return float64(s.PendingDropped) }),
			counter("mms_ingest_pairs_delivered_total",
				"Aligned pairs drained into the live store.",
				func(s ingest.Stats) float64 { return float64(s.PairsDelivered) }),
			counter("mms_ingest_tail_deduped_total",
				"Pairs discarded for repeating the live tail.",
				func(s ingest.Stats) float64 { return float64(s.TailDeduped) }),
			counter("mms_ingest_live_evicted_total",
				"Pairs evicted from the live store by capacity.",
				func(s ingest.Stats) float64 { return float64(s.LiveEvicted) }),
			counter("mms_ingest_pairs_recorded_total",
				"Pairs appended to the active recording.",
				func(s ingest.Stats) float64 { return float64(s.PairsRecorded) }),
			counter("mms_ingest_batches_published_total",
				"Batches delivered to subscribers.",
				func(s ingest.Stats) float64 { return float64(s.Published) }),
			counter("mms_ingest_batches_dropped_total",
				"Batches lost to full subscriber buffers.",
				func(s ingest.Stats) float64 { return float64(s.PublishDropped) }),
			gauge("mms_ingest_raw_depth",
				"Notifications waiting in the raw queue.",
				func(s ingest.Stats) float64 { return float64(s.RawDepth) }),
			gauge("mms_ingest_pending_depth",
				"Aligned pairs waiting in the pending queue.",
				func(s ingest.Stats) float64 { return float64(s.PendingDepth) }),
			gauge("mms_ingest_live_samples",
				"Pairs currently in the live store.",
				func(s ingest.Stats) float64 { return float64(s.LiveLen) }),
			gauge("mms_ingest_snapshots",
				"Parameter snapshots currently indexed.",
				func(s ingest.Stats) float64 { return float64(s.Snapshots) }),
			gauge("mms_ingest_subscribers",
				"Active batch subscribers.",
				func(s ingest.Stats) float64 { return float64(s.Subscribers) }),
		},
		state: prometheus.NewDesc("mms_ingest_state",
			"Session state as a one-hot gauge.",
			[]string{"state"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
	ch <- c.state
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.typ, m.value(s))
	}
	for _, st := range sessionStates {
		var v float64
		if st == s.State {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, st.String())
	}
}

// NewRegistry returns a dedicated registry holding the stats collector plus
// the standard Go runtime and process collectors.
func NewRegistry(source StatsSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves a dedicated registry for the source in the Prometheus
// exposition format.
func Handler(source StatsSource) http.Handler {
	return promhttp.HandlerFor(NewRegistry(source), promhttp.HandlerOpts{})
}
