package monitoring

import (
	"strings"
	"testing"
	"time"
)

func TestDiagnosisMetrics(t *testing.T) {
	m := NewDiagnosisMetrics()
	m.ObserveDiagnosis(true, true, false, 3, 20*time.Millisecond)
	m.ObserveDiagnosis(false, false, true, 0, 10*time.Millisecond)
	m.ObserveFailure("schema")

	values := map[string]float64{}
	for _, metric := range m.Snapshot() {
		values[metric.Name+formatLabels(metric.Labels)] = metric.Value
	}

	expect := map[string]float64{
		"heartdx_diagnoses_total":                2,
		"heartdx_diagnoses_positive_total":       1,
		"heartdx_diagnoses_unverified_total":     1,
		"heartdx_cache_hits_total":               1,
		`heartdx_risk_score_total{score="3"}`:    1,
		`heartdx_risk_score_total{score="1"}`:    0,
		`heartdx_failures_total{stage="schema"}`: 1,
		`heartdx_latency_seconds{stat="max"}`:    0.02,
	}
	for name, want := range expect {
		got, ok := values[name]
		if !ok {
			t.Fatalf("missing series %s", name)
		}
		if got != want {
			t.Fatalf("%s: expected %v, got %v", name, want, got)
		}
	}
}

func TestExportPrometheus(t *testing.T) {
	m := NewDiagnosisMetrics()
	m.ObserveDiagnosis(true, true, false, 2, time.Millisecond)

	out := m.ExportPrometheus()
	if strings.Count(out, "# TYPE heartdx_risk_score_total counter") != 1 {
		t.Fatalf("expected a single TYPE line per series:\n%s", out)
	}
	if !strings.Contains(out, `heartdx_risk_score_total{score="2"} 1`) {
		t.Fatalf("unexpected export:\n%s", out)
	}
}
