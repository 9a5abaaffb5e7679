package ml

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	FeatureAge       = "age"
	FeatureSex       = "sex"
	FeatureTrestBPS  = "trestbps"
	FeatureChol      = "chol"
	FeatureFBS       = "fbs"
	FeatureRestECG   = "restecg"
	FeatureThalach   = "thalach"
	FeatureExang     = "exang"
	FeatureOldpeak   = "oldpeak"
	FeatureCA        = "ca"
	FeatureRiskScore = "risk_score"
)

// categoricalGroup is a drop-first one-hot column family. Level 0 is the
// reference and has no column.
type categoricalGroup struct {
	prefix string
	levels int
}

var categoricalGroups = []categoricalGroup{
	{prefix: "cp", levels: 4},
	{prefix: "thal", levels: 4},
	{prefix: "slope", levels: 3},
}

func (g categoricalGroup) column(level int) string {
	return fmt.Sprintf("%s_%d", g.prefix, level)
}

func (g categoricalGroup) value(v RawVitals) int {
	switch g.prefix {
	case "cp":
		return v.CP
	case "thal":
		return v.Thal
	default:
		return v.Slope
	}
}

// ContinuousColumns is the column order the scaler was fit on.
func ContinuousColumns() []string {
	return []string{
		FeatureAge,
		FeatureTrestBPS,
		FeatureChol,
		FeatureThalach,
		FeatureOldpeak,
	}
}

// FeatureNames returns the assembled columns in construction order.
func FeatureNames() []string {
	names := []string{
		FeatureAge,
		FeatureSex,
		FeatureTrestBPS,
		FeatureChol,
		FeatureFBS,
		FeatureRestECG,
		FeatureThalach,
		FeatureExang,
		FeatureOldpeak,
		FeatureCA,
		FeatureRiskScore,
	}
	for _, g := range categoricalGroups {
		for level := 1; level < g.levels; level++ {
			names = append(names, g.column(level))
		}
	}
	return names
}

// IndicatorGroups maps each categorical prefix to its indicator columns.
func IndicatorGroups() map[string][]string {
	groups := make(map[string][]string, len(categoricalGroups))
	for _, g := range categoricalGroups {
		cols := make([]string, 0, g.levels-1)
		for level := 1; level < g.levels; level++ {
			cols = append(cols, g.column(level))
		}
		groups[g.prefix] = cols
	}
	return groups
}

// FeatureRecord is an immutable, ordered name to value mapping for one patient.
type FeatureRecord struct {
	names  []string
	values map[string]float64
}

func (r FeatureRecord) Len() int {
	return len(r.names)
}

// Names returns the column names in construction order.
func (r FeatureRecord) Names() []string {
	return append([]string(nil), r.names...)
}

func (r FeatureRecord) Value(name string) (float64, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns the values in construction order.
func (r FeatureRecord) Values() []float64 {
	out := make([]float64, len(r.names))
	for i, name := range r.names {
		out[i] = r.values[name]
	}
	return out
}

func (r FeatureRecord) Map() map[string]float64 {
	out := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r FeatureRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}

// DefaultPolicy lists the fields the intake does not collect and the value
// assumed for each.
type DefaultPolicy map[string]float64

// DefaultPolicyTable is the policy the shipped model was trained against.
func DefaultPolicyTable() DefaultPolicy {
	return DefaultPolicy{
		FeatureFBS:     0,
		FeatureRestECG: 0,
	}
}

func defaultedFields() []string {
	return []string{FeatureFBS, FeatureRestECG}
}

type Assembler struct {
	defaults DefaultPolicy
}

// NewAssembler overlays overrides on DefaultPolicyTable. Only fields the
// intake leaves uncollected may be overridden.
func NewAssembler(overrides DefaultPolicy) (*Assembler, error) {
	policy := DefaultPolicyTable()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := policy[k]; !ok {
			return nil, fmt.Errorf("ml: %q is not a defaulted field (allowed: %v)", k, defaultedFields())
		}
		policy[k] = overrides[k]
	}
	return &Assembler{defaults: policy}, nil
}

// Defaults returns a copy of the policy in effect.
func (a *Assembler) Defaults() DefaultPolicy {
	out := make(DefaultPolicy, len(a.defaults))
	for k, v := range a.defaults {
		out[k] = v
	}
	return out
}

// Assemble builds the complete feature record. Ranges are assumed validated.
func (a *Assembler) Assemble(raw RawVitals, scaler ContinuousScaler) (FeatureRecord, error) {
	continuous := []float64{
		float64(raw.Age),
		float64(raw.TrestBPS),
		float64(raw.Chol),
		float64(raw.Thalach),
		raw.Oldpeak,
	}
	scaled, err := scaler.Transform(continuous)
	if err != nil {
		return FeatureRecord{}, &ScalingError{Want: len(continuous), Got: len(scaled), Err: err}
	}
	if len(scaled) != len(continuous) {
		return FeatureRecord{}, &ScalingError{Want: len(continuous), Got: len(scaled)}
	}

	values := map[string]float64{
		FeatureAge:       scaled[0],
		FeatureSex:       float64(raw.Sex),
		FeatureTrestBPS:  scaled[1],
		FeatureChol:      scaled[2],
		FeatureFBS:       a.defaults[FeatureFBS],
		FeatureRestECG:   a.defaults[FeatureRestECG],
		FeatureThalach:   scaled[3],
		FeatureExang:     float64(raw.Exang),
		FeatureOldpeak:   scaled[4],
		FeatureCA:        float64(raw.CA),
		FeatureRiskScore: float64(RiskScore(raw)),
	}
	for _, g := range categoricalGroups {
		selected := g.value(raw)
		for level := 1; level < g.levels; level++ {
			values[g.column(level)] = 0
			if selected == level {
				values[g.column(level)] = 1
			}
		}
	}

	return FeatureRecord{names: FeatureNames(), values: values}, nil
}
