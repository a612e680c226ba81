package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "telehealth"

// VitalsMetrics exposes counters/histograms for wearable ingestion.
type VitalsMetrics struct {
	readingsTotal *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	ingestLatency prometheus.Histogram
	notifications *prometheus.CounterVec
}

func NewVitalsMetrics(reg prometheus.Registerer) *VitalsMetrics {
	m := &VitalsMetrics{
		readingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vitals",
			Name:      "readings_total",
			Help:      "Total wearable readings received",
		}, []string{"status"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vitals",
			Name:      "alerts_total",
			Help:      "Total vital alerts raised",
		}, []string{"vital", "severity"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vitals",
			Name:      "ingest_latency_seconds",
			Help:      "Latency of reading ingestion including persistence",
			Buckets:   prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vitals",
			Name:      "emergency_notifications_total",
			Help:      "Emergency notifications sent to the care team",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.readingsTotal, m.alertsTotal, m.ingestLatency, m.notifications)
	return m
}

// ObserveReading counts a reading by outcome (accepted, invalid, error).
func (m *VitalsMetrics) ObserveReading(status string) {
	if m == nil {
		return
	}
	m.readingsTotal.WithLabelValues(status).Inc()
}

func (m *VitalsMetrics) ObserveAlert(vital, severity string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(vital, severity).Inc()
}

func (m *VitalsMetrics) ObserveIngestLatency(seconds float64) {
	if m == nil {
		return
	}
	m.ingestLatency.Observe(seconds)
}

func (m *VitalsMetrics) ObserveNotification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}

// DiagnosisMetrics exposes counters/histograms for symptom analysis.
type DiagnosisMetrics struct {
	diagnosesTotal *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
	jobsTotal      *prometheus.CounterVec
}

func NewDiagnosisMetrics(reg prometheus.Registerer) *DiagnosisMetrics {
	m := &DiagnosisMetrics{
		diagnosesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diagnosis",
			Name:      "completed_total",
			Help:      "Completed diagnoses by provenance and severity",
		}, []string{"provenance", "severity"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "diagnosis",
			Name:      "llm_latency_seconds",
			Help:      "Latency of AI provider calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"provider", "status"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diagnosis",
			Name:      "jobs_total",
			Help:      "Async diagnosis jobs by final status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.diagnosesTotal, m.llmLatency, m.jobsTotal)
	return m
}

// ObserveDiagnosis counts a diagnosis; provenance is "ai", "rule_based" or "empty".
func (m *DiagnosisMetrics) ObserveDiagnosis(provenance, severity string) {
	if m == nil {
		return
	}
	m.diagnosesTotal.WithLabelValues(provenance, severity).Inc()
}

func (m *DiagnosisMetrics) ObserveLLMLatency(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider, status).Observe(seconds)
}

func (m *DiagnosisMetrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
}
