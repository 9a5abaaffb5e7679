package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

type LogisticRegression struct {
	Names     []string  `json:"feature_names,omitempty"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (lr *LogisticRegression) FeatureNames() []string {
	return append([]string(nil), lr.Names...)
}

func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(lr.Coef) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != len(lr.Coef) {
		return nil, fmt.Errorf("expected %d features, got %d", len(lr.Coef), len(features))
	}
	z := lr.Intercept
	for i, x := range features {
		z += lr.Coef[i] * x
	}
	p := 1 / (1 + math.Exp(-z))
	return []float64{1 - p, p}, nil
}

func (lr *LogisticRegression) Predict(features []float64) (int, error) {
	proba, err := lr.PredictProba(features)
	if err != nil {
		return 0, err
	}
	if proba[1] > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (lr *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LogisticRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Coef) == 0 {
		return fmt.Errorf("logistic regression %s has no coefficients", path)
	}
	if len(loaded.Names) > 0 && len(loaded.Names) != len(loaded.Coef) {
		return fmt.Errorf("logistic regression %s: %d feature names for %d coefficients", path, len(loaded.Names), len(loaded.Coef))
	}
	*lr = loaded
	return nil
}
