package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 9090
model:
  type: logistic_regression
  path: models/lr.json
  scaler_path: models/scaler.json
features:
  defaults:
    fbs: 1
report:
  locale: de
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Http.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Http.Port)
	}
	if cfg.Http.Timeout != 30*time.Second {
		t.Fatalf("expected default timeout, got %v", cfg.Http.Timeout)
	}
	if cfg.Model.Type != "logistic_regression" {
		t.Fatalf("unexpected model type %q", cfg.Model.Type)
	}
	if cfg.Features.Defaults["fbs"] != 1 {
		t.Fatalf("expected fbs default override, got %v", cfg.Features.Defaults)
	}
	if cfg.Cache.Size != 1024 || cfg.Report.Locale != "de" {
		t.Fatalf("unexpected cache/report config: %+v %+v", cfg.Cache, cfg.Report)
	}
}

func TestLoadRejectsMissingScaler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model:\n  scaler_path: \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
