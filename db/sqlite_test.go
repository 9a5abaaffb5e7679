package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndQueryPredictions(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b"} {
		err := store.SavePrediction(PredictionRecord{
			ID:            id,
			Positive:      i == 1,
			Probability:   0.25 * float64(i+1),
			Confidence:    75,
			RiskScore:     i + 1,
			SchemaVersion: "heart-v1",
			Verified:      true,
			Features:      map[string]float64{"age": 1.5, "cp_2": 1},
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records, err := store.QueryPredictions(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	latest := records[0]
	if latest.ID != "b" || !latest.Positive || latest.RiskScore != 2 {
		t.Fatalf("unexpected latest record: %+v", latest)
	}
	if latest.Features["cp_2"] != 1 || !latest.Verified || latest.SchemaVersion != "heart-v1" {
		t.Fatalf("unexpected record contents: %+v", latest)
	}
	if !latest.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected timestamp: %v", latest.CreatedAt)
	}
}

func TestSavePredictionRequiresID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()
	if err := store.SavePrediction(PredictionRecord{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}
