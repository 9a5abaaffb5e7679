package ml

// ContinuousScaler maps the ordered continuous tuple to its scaled form
// using parameters fixed at fit time.
type ContinuousScaler interface {
	Transform(values []float64) ([]float64, error)
}

// ScalerFunc adapts a function to ContinuousScaler.
type ScalerFunc func(values []float64) ([]float64, error)

func (f ScalerFunc) Transform(values []float64) ([]float64, error) {
	return f(values)
}

// Classifier is a trained binary model. PredictProba returns
// [p_negative, p_positive].
type Classifier interface {
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
}

// SchemaProvider is implemented by classifiers that record the columns they
// were trained on.
type SchemaProvider interface {
	FeatureNames() []string
}
