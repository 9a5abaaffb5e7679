package ml

import "fmt"

// RawVitals holds one patient's measurements as collected upstream.
type RawVitals struct {
	Age      int     `json:"age" yaml:"age"`
	TrestBPS int     `json:"trestbps" yaml:"trestbps"`
	Chol     int     `json:"chol" yaml:"chol"`
	Thalach  int     `json:"thalach" yaml:"thalach"`
	Oldpeak  float64 `json:"oldpeak" yaml:"oldpeak"`

	Sex   int `json:"sex" yaml:"sex"`
	Exang int `json:"exang" yaml:"exang"`
	CA    int `json:"ca" yaml:"ca"`

	CP    int `json:"cp" yaml:"cp"`
	Slope int `json:"slope" yaml:"slope"`
	Thal  int `json:"thal" yaml:"thal"`
}

// VitalFields lists the input names every record must carry, in prompt order.
func VitalFields() []string {
	return []string{"age", "sex", "cp", "trestbps", "chol", "thalach", "exang", "oldpeak", "slope", "ca", "thal"}
}

type intRange struct {
	name     string
	value    int
	min, max int
}

// Validate checks every field against its clinical range. Assemble does not
// call it; transports that accept untrusted input do.
func (v RawVitals) Validate() error {
	ranges := []intRange{
		{"age", v.Age, 1, 120},
		{"trestbps", v.TrestBPS, 50, 250},
		{"chol", v.Chol, 100, 600},
		{"thalach", v.Thalach, 50, 250},
		{"sex", v.Sex, 0, 1},
		{"exang", v.Exang, 0, 1},
		{"ca", v.CA, 0, 3},
		{"cp", v.CP, 0, 3},
		{"slope", v.Slope, 0, 2},
		{"thal", v.Thal, 0, 3},
	}
	for _, r := range ranges {
		if r.value < r.min || r.value > r.max {
			return fmt.Errorf("%s out of range [%d, %d]: %d", r.name, r.min, r.max, r.value)
		}
	}
	if !(v.Oldpeak >= 0 && v.Oldpeak <= 10) {
		return fmt.Errorf("oldpeak out of range [0.0, 10.0]: %g", v.Oldpeak)
	}
	return nil
}

// RiskScore counts the exceeded comorbidity thresholds. Comparisons are strict.
func RiskScore(v RawVitals) int {
	score := 0
	if v.Age > 60 {
		score++
	}
	if v.TrestBPS > 140 {
		score++
	}
	if v.Chol > 240 {
		score++
	}
	return score
}
