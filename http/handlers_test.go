package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"heartdx/db"
	"heartdx/diagnosis"
	"heartdx/ml"
	"heartdx/monitoring"
	"heartdx/registry"

	"github.com/gorilla/websocket"
)

const vitalsJSON = `{"age":65,"trestbps":150,"chol":260,"thalach":140,"oldpeak":1.2,"sex":1,"exang":0,"ca":1,"cp":2,"slope":1,"thal":2}`

var identity = ml.ScalerFunc(func(v []float64) ([]float64, error) {
	return append([]float64(nil), v...), nil
})

func positiveTree(names []string) *ml.DecisionTree {
	return ml.NewDecisionTree(names, []ml.TreeNode{{IsLeaf: true, Proba: []float64{0.25, 0.75}}})
}

func newTestServer(t *testing.T, model ml.Classifier) (*Server, *db.Store, *monitoring.Hub) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := monitoring.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	metrics := monitoring.NewDiagnosisMetrics()
	svc, err := diagnosis.NewService(registry.NewStatic(model, identity, ml.UnavailableSchema()),
		diagnosis.Options{Recorder: store, Publisher: hub, Metrics: metrics, CacheSize: 16})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewServer(DefaultServerConfig(), NewAPI(svc, store, hub, metrics, "en")), store, hub
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthHandler(t *testing.T) {
	s, _, _ := newTestServer(t, positiveTree(ml.FeatureNames()))
	rr := doRequest(t, s, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestHandlePredict(t *testing.T) {
	s, store, _ := newTestServer(t, positiveTree(ml.FeatureNames()))
	rr := doRequest(t, s, http.MethodPost, "/api/predict", vitalsJSON)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var report diagnosis.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !report.Positive || report.Confidence != 75 || report.RiskScore != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Features["cp_2"] != 1 || report.Features["thal_2"] != 1 || report.Features["slope_1"] != 1 {
		t.Fatalf("unexpected indicators: %v", report.Features)
	}

	records, err := store.QueryPredictions(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ID != report.ID {
		t.Fatalf("expected recorded prediction, got %+v", records)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/predictions?limit=5", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), report.ID) {
		t.Fatalf("unexpected predictions response %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandlePredictText(t *testing.T) {
	s, _, _ := newTestServer(t, positiveTree(ml.FeatureNames()))
	rr := doRequest(t, s, http.MethodPost, "/api/predict?format=text", vitalsJSON)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "75.00%") {
		t.Fatalf("unexpected text report: %s", rr.Body.String())
	}
}

func TestHandlePredictRejectsInvalidInput(t *testing.T) {
	s, _, _ := newTestServer(t, positiveTree(ml.FeatureNames()))
	cases := []string{
		strings.Replace(vitalsJSON, `"age":65`, `"age":0`, 1),
		strings.Replace(vitalsJSON, `"thal":2`, `"thal":2,"fbs":1`, 1),
		`not json`,
		`{"age":65,"trestbps":150,"chol":260,"thalach":140}`,
		strings.Replace(vitalsJSON, `"sex":1`, `"sex":null`, 1),
	}
	for _, body := range cases {
		rr := doRequest(t, s, http.MethodPost, "/api/predict", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rr.Code)
		}
	}
}

func TestHandlePredictSchemaMismatch(t *testing.T) {
	s, _, _ := newTestServer(t, positiveTree(append(ml.FeatureNames(), "thal_4")))
	rr := doRequest(t, s, http.MethodPost, "/api/predict", vitalsJSON)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "thal_4") {
		t.Fatalf("expected missing column in error: %s", rr.Body.String())
	}
}

func TestHandlePredictNamesMissingFields(t *testing.T) {
	s, store, _ := newTestServer(t, positiveTree(ml.FeatureNames()))
	rr := doRequest(t, s, http.MethodPost, "/api/predict", `{"age":65,"trestbps":150,"chol":260,"thalach":140}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	for _, field := range []string{"sex", "cp", "oldpeak", "thal"} {
		if !strings.Contains(rr.Body.String(), field) {
			t.Fatalf("expected %s in error: %s", field, rr.Body.String())
		}
	}
	records, err := store.QueryPredictions(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected nothing recorded, got %d", len(records))
	}
}

func TestHandlePredictAcceptsExplicitZeros(t *testing.T) {
	s, _, _ := newTestServer(t, positiveTree(ml.FeatureNames()))
	body := `{"age":50,"trestbps":120,"chol":200,"thalach":150,"oldpeak":0,"sex":0,"exang":0,"ca":0,"cp":0,"slope":0,"thal":0}`
	rr := doRequest(t, s, http.MethodPost, "/api/predict", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandlePredictInvalidSchema(t *testing.T) {
	dup := ml.ColumnSchema{Version: "dup", Columns: []string{"age", "age"}}
	svc, err := diagnosis.NewService(registry.NewStatic(positiveTree(nil), identity, ml.KnownSchema(dup)), diagnosis.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := NewServer(DefaultServerConfig(), NewAPI(svc, nil, nil, nil, "en"))
	rr := doRequest(t, s, http.MethodPost, "/api/predict", vitalsJSON)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleMetrics(t *testing.T) {
	s, _, _ := newTestServer(t, positiveTree(ml.FeatureNames()))
	doRequest(t, s, http.MethodPost, "/api/predict", vitalsJSON)

	rr := doRequest(t, s, http.MethodGet, "/api/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "heartdx_diagnoses_total 1") {
		t.Fatalf("unexpected metrics:\n%s", rr.Body.String())
	}
}

func TestHandleSchema(t *testing.T) {
	s, _, _ := newTestServer(t, positiveTree(nil))
	rr := doRequest(t, s, http.MethodGet, "/api/schema", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["available"].(bool) {
		t.Fatal("expected schema to be unavailable for unlabeled model")
	}
	if len(payload["feature_names"].([]interface{})) != 19 {
		t.Fatalf("unexpected feature names: %v", payload["feature_names"])
	}
}

func TestPredictionFeed(t *testing.T) {
	s, _, hub := newTestServer(t, positiveTree(ml.FeatureNames()))
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/ws/predictions", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(server.URL+"/api/predict", "application/json", bytes.NewBufferString(vitalsJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), `"type":"diagnosis"`) {
		t.Fatalf("unexpected message: %s", data)
	}
}
