package diagnosis

import (
	"strings"
	"time"

	"heartdx/db"
	"heartdx/ml"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	recommendPositive = "Immediate Clinical Consultation Required."
	recommendNegative = "Maintain healthy lifestyle."
	disclaimer        = "This tool is for educational purposes only. It is NOT a substitute for professional medical advice."
)

type Report struct {
	ID       string `json:"id"`
	Positive bool   `json:"positive"`
	// Probability is the classifier's p(positive).
	Probability float64 `json:"probability"`
	// Confidence is the probability of the reported class, in percent.
	Confidence     float64            `json:"confidence"`
	RiskScore      int                `json:"risk_score"`
	Features       map[string]float64 `json:"features"`
	Columns        []string           `json:"columns"`
	SchemaVersion  string             `json:"schema_version,omitempty"`
	Verified       bool               `json:"verified"`
	Warning        string             `json:"warning,omitempty"`
	Recommendation string             `json:"recommendation"`
	CreatedAt      time.Time          `json:"created_at"`
}

func newReport(positive bool, pPositive float64, record ml.FeatureRecord, vector ml.OrderedFeatureVector) Report {
	r := Report{
		Positive:      positive,
		Probability:   pPositive,
		Features:      record.Map(),
		Columns:       vector.Columns,
		SchemaVersion: vector.SchemaVersion,
		Verified:      vector.Verified,
	}
	if v, ok := record.Value(ml.FeatureRiskScore); ok {
		r.RiskScore = int(v)
	}
	if warn := vector.Warning(); warn != nil {
		r.Warning = warn.Error()
	}
	if positive {
		r.Confidence = pPositive * 100
		r.Recommendation = recommendPositive
	} else {
		r.Confidence = 100 - pPositive*100
		r.Recommendation = recommendNegative
	}
	return r
}

func (r Report) Record() db.PredictionRecord {
	return db.PredictionRecord{
		ID:            r.ID,
		Positive:      r.Positive,
		Probability:   r.Probability,
		Confidence:    r.Confidence,
		RiskScore:     r.RiskScore,
		SchemaVersion: r.SchemaVersion,
		Verified:      r.Verified,
		Features:      r.Features,
		CreatedAt:     r.CreatedAt,
	}
}

// Format renders the diagnostic report with numbers formatted for locale.
func (r Report) Format(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("                  DIAGNOSTIC REPORT\n")
	b.WriteString(rule + "\n\n")
	if r.Positive {
		b.WriteString("  RESULT: POSITIVE FOR HEART DISEASE\n")
	} else {
		b.WriteString("  RESULT: NEGATIVE (HEALTHY)\n")
	}
	b.WriteString(p.Sprintf("  Confidence Level: %.2f%%\n", r.Confidence))
	b.WriteString(p.Sprintf("  Risk Score: %d/3\n", r.RiskScore))
	b.WriteString("  Recommendation: " + r.Recommendation + "\n")
	if r.Warning != "" {
		b.WriteString("  Warning: " + r.Warning + "\n")
	}
	b.WriteString("\n" + rule + "\n")
	b.WriteString("  Disclaimer: " + disclaimer + "\n")
	b.WriteString(rule + "\n")
	return b.String()
}
