package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// StandardScaler applies (x - mean) / scale per column.
type StandardScaler struct {
	Columns []string  `json:"columns,omitempty"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(s.Mean) == 0 {
		return nil, errors.New("scaler not fitted")
	}
	if len(values) != len(s.Mean) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.Mean), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}

func (s *StandardScaler) Save(path string) error {
	if len(s.Mean) == 0 {
		return errors.New("scaler not fitted")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (s *StandardScaler) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded StandardScaler
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if err := loaded.validate(); err != nil {
		return fmt.Errorf("scaler %s: %w", path, err)
	}
	*s = loaded
	return nil
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 {
		return errors.New("mean is empty")
	}
	if len(s.Mean) != len(s.Scale) {
		return errors.New("mean/scale length mismatch")
	}
	for i, v := range s.Scale {
		if v == 0 {
			return fmt.Errorf("scale[%d] is zero", i)
		}
	}
	if len(s.Columns) == 0 {
		return nil
	}
	want := ContinuousColumns()
	if len(s.Columns) != len(want) {
		return fmt.Errorf("fit on %d columns, want %v", len(s.Columns), want)
	}
	for i := range want {
		if s.Columns[i] != want[i] {
			return fmt.Errorf("fit on column order %v, want %v", s.Columns, want)
		}
	}
	return nil
}

func LoadScaler(path string) (*StandardScaler, error) {
	scaler := &StandardScaler{}
	if err := scaler.Load(path); err != nil {
		return nil, err
	}
	return scaler, nil
}
