package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics captures reconciliation sweep health signals.
type SweepMetrics struct {
	jobRuns      *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobTimeouts  *prometheus.CounterVec
	jobErrors    *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	batchScanned *prometheus.CounterVec
}

var (
	sweepOnce     sync.Once
	sweepInstance *SweepMetrics
)

// Sweep returns the process-wide sweep metrics, registering them once.
func Sweep() *SweepMetrics {
	sweepOnce.Do(func() {
		sweepInstance = newSweepMetrics(prometheus.DefaultRegisterer)
	})
	return sweepInstance
}

func newSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	m := &SweepMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stayloop_sweep_job_runs_total",
			Help: "Number of sweep job invocations.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stayloop_sweep_job_duration_seconds",
			Help:    "Sweep job duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stayloop_sweep_job_timeouts_total",
			Help: "Number of sweep jobs that hit their deadline.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stayloop_sweep_job_errors_total",
			Help: "Number of sweep job errors by type.",
		}, []string{"job", "error_type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stayloop_sweep_transitions_total",
			Help: "Number of obligation status transitions committed by the sweep.",
		}, []string{"obligation_type", "to_status"}),
		batchScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stayloop_sweep_scanned_total",
			Help: "Number of obligations scanned by the sweep.",
		}, []string{"obligation_type"}),
	}

	collectors := []prometheus.Collector{
		m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors, m.transitions, m.batchScanned,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}

	return m
}

func (m *SweepMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SweepMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SweepMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SweepMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, classifySweepError(err)).Inc()
}

func (m *SweepMetrics) IncTransition(obligationType, toStatus string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(obligationType, toStatus).Inc()
}

func (m *SweepMetrics) AddScanned(obligationType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchScanned.WithLabelValues(obligationType).Add(float64(n))
}

func classifySweepError(err error) string {
	if err == nil {
		return "unknown"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "context canceled"):
		return "deadline_exceeded"
	case strings.Contains(msg, "lock"):
		return "lock"
	case strings.Contains(msg, "sql"), strings.Contains(msg, "database"), strings.Contains(msg, "constraint"):
		return "db"
	default:
		return "unknown"
	}
}
