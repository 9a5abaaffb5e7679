package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"heartdx/db"
	"heartdx/diagnosis"
	"heartdx/logger"
	"heartdx/ml"
	"heartdx/monitoring"

	"go.uber.org/zap"
)

// Diagnoser is implemented by *diagnosis.Service.
type Diagnoser interface {
	Diagnose(ctx context.Context, raw ml.RawVitals) (*diagnosis.Report, error)
	Schema() (ml.SchemaRef, error)
}

// PredictionLister is implemented by *db.Store.
type PredictionLister interface {
	QueryPredictions(limit int) ([]db.PredictionRecord, error)
}

type API struct {
	diagnoser Diagnoser
	store     PredictionLister
	hub       *monitoring.Hub
	metrics   *monitoring.DiagnosisMetrics
	locale    string
}

// NewAPI wires the handlers. store, hub and metrics may be nil.
func NewAPI(diagnoser Diagnoser, store PredictionLister, hub *monitoring.Hub, metrics *monitoring.DiagnosisMetrics, locale string) *API {
	return &API{diagnoser: diagnoser, store: store, hub: hub, metrics: metrics, locale: locale}
}

func (a *API) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/predict", a.handlePredict)
	mux.HandleFunc("GET /api/schema", a.handleSchema)
	mux.HandleFunc("GET /api/predictions", a.handlePredictions)
	if a.metrics != nil {
		mux.HandleFunc("GET /api/metrics", a.handleMetrics)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if _, err := a.diagnoser.Schema(); err != nil {
		status["status"] = "degraded"
		status["model"] = err.Error()
	}
	respondJSON(w, http.StatusOK, status)
}

// predictRequest tells an absent field apart from an explicit zero.
type predictRequest struct {
	Age      *int     `json:"age"`
	Sex      *int     `json:"sex"`
	CP       *int     `json:"cp"`
	TrestBPS *int     `json:"trestbps"`
	Chol     *int     `json:"chol"`
	Thalach  *int     `json:"thalach"`
	Exang    *int     `json:"exang"`
	Oldpeak  *float64 `json:"oldpeak"`
	Slope    *int     `json:"slope"`
	CA       *int     `json:"ca"`
	Thal     *int     `json:"thal"`
}

func (p predictRequest) vitals() (ml.RawVitals, error) {
	ints := map[string]*int{
		"age": p.Age, "sex": p.Sex, "cp": p.CP, "trestbps": p.TrestBPS, "chol": p.Chol,
		"thalach": p.Thalach, "exang": p.Exang, "slope": p.Slope, "ca": p.CA, "thal": p.Thal,
	}
	var missing []string
	for _, name := range ml.VitalFields() {
		if name == "oldpeak" {
			if p.Oldpeak == nil {
				missing = append(missing, name)
			}
			continue
		}
		if ints[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return ml.RawVitals{}, &ml.MissingFieldsError{Fields: missing}
	}
	return ml.RawVitals{
		Age: *p.Age, TrestBPS: *p.TrestBPS, Chol: *p.Chol, Thalach: *p.Thalach, Oldpeak: *p.Oldpeak,
		Sex: *p.Sex, Exang: *p.Exang, CA: *p.CA,
		CP: *p.CP, Slope: *p.Slope, Thal: *p.Thal,
	}, nil
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	raw, err := req.vitals()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := raw.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := a.diagnoser.Diagnose(r.Context(), raw)
	if err != nil {
		status := statusFor(err)
		logger.L().Warn("diagnosis request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Int("status", status),
			zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	if r.URL.Query().Get("format") == "text" {
		locale := a.locale
		if l := r.URL.Query().Get("locale"); l != "" {
			locale = l
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(report.Format(locale)))
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func statusFor(err error) int {
	var mismatch *ml.SchemaMismatchError
	var scaling *ml.ScalingError
	switch {
	case errors.As(err, &mismatch), errors.Is(err, ml.ErrInvalidSchema):
		return http.StatusUnprocessableEntity
	case errors.As(err, &scaling):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) handleSchema(w http.ResponseWriter, r *http.Request) {
	ref, err := a.diagnoser.Schema()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	response := map[string]interface{}{
		"available":     false,
		"feature_names": ml.FeatureNames(),
		"continuous":    ml.ContinuousColumns(),
	}
	if schema, ok := ref.Schema(); ok {
		response["available"] = true
		response["version"] = schema.Version
		response["columns"] = schema.Columns
	}
	respondJSON(w, http.StatusOK, response)
}

func (a *API) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusNotFound, "prediction store disabled")
		return
	}
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	records, err := a.store.QueryPredictions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": records})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		respondJSON(w, http.StatusOK, map[string]interface{}{"data": a.metrics.Snapshot()})
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(a.metrics.ExportPrometheus()))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
