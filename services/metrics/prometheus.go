package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/ratiba/core/timetable"
)

const namespace = "ratiba"

// Prometheus records timetable metrics in its own registry.
type Prometheus struct {
	registry  *prometheus.Registry
	mutations *prometheus.CounterVec
	conflicts *prometheus.GaugeVec
	scans     prometheus.Histogram
}

var _ timetable.Metrics = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timetable",
			Name:      "mutations_total",
			Help:      "Timetable writes by operation and outcome.",
		}, []string{"op", "outcome"}),
		conflicts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "timetable",
			Name:      "conflicts",
			Help:      "Conflicting pairs found by the last scan of a school.",
		}, []string{"school", "type"}),
		scans: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "timetable",
			Name:      "conflict_scan_seconds",
			Help:      "Duration of school-wide conflict scans.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	p.registry.MustRegister(
		p.mutations,
		p.conflicts,
		p.scans,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) MutationDone(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.mutations.WithLabelValues(op, outcome).Inc()
}

func (p *Prometheus) ConflictsDetected(schoolID string, report timetable.Report, took time.Duration) {
	p.conflicts.WithLabelValues(schoolID, string(timetable.TeacherConflict)).Set(float64(report.Teacher))
	p.conflicts.WithLabelValues(schoolID, string(timetable.RoomConflict)).Set(float64(report.Room))
	p.scans.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. to gather in tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
