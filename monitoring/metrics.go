package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType is the Prometheus type of a series.
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
	MetricTypeSummary MetricType = "summary"
)

// Metric is a point-in-time view of one series.
type Metric struct {
	Name   string            `json:"name"`
	Type   MetricType        `json:"type"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
	Help   string            `json:"help,omitempty"`
}

// DiagnosisMetrics counts diagnoses and their outcomes.
type DiagnosisMetrics struct {
	mu sync.RWMutex

	startTime  time.Time
	total      int64
	positive   int64
	unverified int64
	cacheHits  int64
	riskScores [4]int64
	failures   map[string]int64

	latencyCount int64
	latencySum   time.Duration
	latencyMax   time.Duration
}

func NewDiagnosisMetrics() *DiagnosisMetrics {
	return &DiagnosisMetrics{
		startTime: time.Now(),
		failures:  make(map[string]int64),
	}
}

// ObserveDiagnosis records one successful diagnosis.
func (m *DiagnosisMetrics) ObserveDiagnosis(positive, verified, cached bool, riskScore int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if positive {
		m.positive++
	}
	if !verified {
		m.unverified++
	}
	if cached {
		m.cacheHits++
	}
	if riskScore >= 0 && riskScore < len(m.riskScores) {
		m.riskScores[riskScore]++
	}
	m.latencyCount++
	m.latencySum += latency
	if latency > m.latencyMax {
		m.latencyMax = latency
	}
}

// ObserveFailure records a diagnosis that failed at the named stage.
func (m *DiagnosisMetrics) ObserveFailure(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[stage]++
}

// Snapshot returns every series at its current value, sorted by name then labels.
func (m *DiagnosisMetrics) Snapshot() []Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := []Metric{
		{Name: "heartdx_diagnoses_total", Type: MetricTypeCounter, Value: float64(m.total), Help: "Completed diagnoses"},
		{Name: "heartdx_diagnoses_positive_total", Type: MetricTypeCounter, Value: float64(m.positive), Help: "Diagnoses with a positive result"},
		{Name: "heartdx_diagnoses_unverified_total", Type: MetricTypeCounter, Value: float64(m.unverified), Help: "Diagnoses made without a column schema"},
		{Name: "heartdx_cache_hits_total", Type: MetricTypeCounter, Value: float64(m.cacheHits), Help: "Diagnoses served from the result cache"},
		{Name: "heartdx_uptime_seconds", Type: MetricTypeGauge, Value: time.Since(m.startTime).Seconds(), Help: "Process uptime"},
		{Name: "heartdx_goroutines", Type: MetricTypeGauge, Value: float64(runtime.NumGoroutine()), Help: "Number of goroutines"},
	}
	for score, n := range m.riskScores {
		metrics = append(metrics, Metric{
			Name:   "heartdx_risk_score_total",
			Type:   MetricTypeCounter,
			Value:  float64(n),
			Labels: map[string]string{"score": fmt.Sprint(score)},
			Help:   "Diagnoses by risk score",
		})
	}
	for stage, n := range m.failures {
		metrics = append(metrics, Metric{
			Name:   "heartdx_failures_total",
			Type:   MetricTypeCounter,
			Value:  float64(n),
			Labels: map[string]string{"stage": stage},
			Help:   "Failed diagnoses by stage",
		})
	}
	if m.latencyCount > 0 {
		metrics = append(metrics,
			Metric{Name: "heartdx_latency_seconds", Type: MetricTypeSummary, Value: m.latencySum.Seconds() / float64(m.latencyCount),
				Labels: map[string]string{"stat": "mean"}, Help: "Diagnosis latency"},
			Metric{Name: "heartdx_latency_seconds", Type: MetricTypeSummary, Value: m.latencyMax.Seconds(),
				Labels: map[string]string{"stat": "max"}, Help: "Diagnosis latency"},
		)
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		if metrics[i].Name != metrics[j].Name {
			return metrics[i].Name < metrics[j].Name
		}
		return formatLabels(metrics[i].Labels) < formatLabels(metrics[j].Labels)
	})
	return metrics
}

// ExportPrometheus renders the snapshot in the Prometheus text format.
func (m *DiagnosisMetrics) ExportPrometheus() string {
	var b strings.Builder
	last := ""
	for _, metric := range m.Snapshot() {
		if metric.Name != last {
			fmt.Fprintf(&b, "# HELP %s %s\n", metric.Name, metric.Help)
			fmt.Fprintf(&b, "# TYPE %s %s\n", metric.Name, metric.Type)
			last = metric.Name
		}
		fmt.Fprintf(&b, "%s%s %g\n", metric.Name, formatLabels(metric.Labels), metric.Value)
	}
	return b.String()
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s="%s"`, k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
