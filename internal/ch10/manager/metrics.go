package manager

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the live instrumentation surface: additive counters/gauges a
// caller may scrape while a run is in flight, never a substitute for the
// metadata document Run returns.
type Metrics struct {
	PacketsParsedTotal   *prometheus.CounterVec
	ParseErrorsTotal     *prometheus.CounterVec
	WorkerActive         prometheus.Gauge
	BytesProcessedTotal  prometheus.Counter
}

// NewMetrics constructs the run's metric set and registers it against reg.
// reg is an explicit prometheus.Registerer (not the global default registry
// registered against with prometheus.MustRegister) so that running more
// than one ParseManager in the same process — as the test suite does —
// never panics on a duplicate collector registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsParsedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ch10_packets_parsed_total",
			Help: "Packets successfully dispatched to a component parser, by packet type.",
		}, []string{"type"}),
		ParseErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ch10_parse_errors_total",
			Help: "Packet-level parse errors observed, by error kind.",
		}, []string{"kind"}),
		WorkerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ch10_worker_active",
			Help: "Number of ParseWorker goroutines currently running.",
		}),
		BytesProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ch10_bytes_processed_total",
			Help: "Total input bytes consumed across all workers and phases.",
		}),
	}
	reg.MustRegister(m.PacketsParsedTotal, m.ParseErrorsTotal, m.WorkerActive, m.BytesProcessedTotal)
	return m
}
