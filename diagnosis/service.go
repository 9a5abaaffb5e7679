// Package diagnosis runs one patient's vitals through the feature pipeline
// and the classifier and produces a report.
package diagnosis

import (
	"context"
	"fmt"
	"time"

	"heartdx/db"
	"heartdx/logger"
	"heartdx/ml"
	"heartdx/monitoring"
	"heartdx/registry"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Recorder persists reports. *db.Store satisfies it.
type Recorder interface {
	SavePrediction(p db.PredictionRecord) error
}

// Publisher fans reports out to live subscribers. *monitoring.Hub satisfies it.
type Publisher interface {
	Publish(msgType monitoring.MessageType, data any) error
}

// Metrics observes outcomes. *monitoring.DiagnosisMetrics satisfies it.
type Metrics interface {
	ObserveDiagnosis(positive, verified, cached bool, riskScore int, latency time.Duration)
	ObserveFailure(stage string)
}

type Options struct {
	Defaults  ml.DefaultPolicy
	CacheSize int
	Recorder  Recorder
	Publisher Publisher
	Metrics   Metrics
}

type cacheKey struct {
	generation uint64
	vitals     ml.RawVitals
}

type Service struct {
	registry  *registry.Registry
	assembler *ml.Assembler
	cache     *lru.Cache[cacheKey, Report]
	recorder  Recorder
	publisher Publisher
	metrics   Metrics
	now       func() time.Time
}

func NewService(reg *registry.Registry, opts Options) (*Service, error) {
	assembler, err := ml.NewAssembler(opts.Defaults)
	if err != nil {
		return nil, err
	}
	s := &Service{
		registry:  reg,
		assembler: assembler,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[cacheKey, Report](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Diagnose runs the full pipeline. ScalingError and SchemaMismatchError are
// returned unchanged so callers can tell them apart with errors.As.
func (s *Service) Diagnose(ctx context.Context, raw ml.RawVitals) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := s.now()
	snap, err := s.registry.Current()
	if err != nil {
		s.failed("registry")
		return nil, err
	}
	log := logger.L().With(zap.Uint64("generation", snap.Generation))

	key := cacheKey{generation: snap.Generation, vitals: raw}
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			log.Debug("diagnosis cache hit")
			return s.finish(cached, start, true), nil
		}
	}

	record, err := s.assembler.Assemble(raw, snap.Scaler)
	if err != nil {
		log.Error("feature assembly failed", zap.Error(err))
		s.failed("assemble")
		return nil, err
	}
	vector, err := ml.Project(record, snap.Schema)
	if err != nil {
		log.Error("schema projection failed", zap.Error(err))
		s.failed("schema")
		return nil, err
	}
	if warn := vector.Warning(); warn != nil {
		log.Warn("predicting without schema metadata", zap.Error(warn))
	}

	label, proba, err := classify(snap.Model, vector.Values)
	if err != nil {
		log.Error("classification failed", zap.Error(err))
		s.failed("model")
		return nil, err
	}

	report := newReport(label == 1, proba[1], record, vector)
	if s.cache != nil {
		s.cache.Add(key, report)
	}
	return s.finish(report, start, false), nil
}

func classify(model ml.Classifier, values []float64) (int, []float64, error) {
	label, err := model.Predict(values)
	if err != nil {
		return 0, nil, fmt.Errorf("predict: %w", err)
	}
	proba, err := model.PredictProba(values)
	if err != nil {
		return 0, nil, fmt.Errorf("predict_proba: %w", err)
	}
	if len(proba) != 2 {
		return 0, nil, fmt.Errorf("predict_proba returned %d classes, want 2", len(proba))
	}
	return label, proba, nil
}

func (s *Service) failed(stage string) {
	if s.metrics != nil {
		s.metrics.ObserveFailure(stage)
	}
}

// finish stamps a fresh identity on the report and records it.
func (s *Service) finish(r Report, start time.Time, cached bool) *Report {
	r.ID = uuid.NewString()
	r.CreatedAt = s.now().UTC()
	r.Features = cloneFeatures(r.Features)

	log := logger.L().With(zap.String("diagnosis_id", r.ID))
	if s.recorder != nil {
		if err := s.recorder.SavePrediction(r.Record()); err != nil {
			log.Error("failed to record prediction", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(monitoring.DiagnosisEvent, r); err != nil {
			log.Warn("failed to publish prediction", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveDiagnosis(r.Positive, r.Verified, cached, r.RiskScore, s.now().Sub(start))
	}
	log.Info("diagnosis complete",
		zap.Bool("positive", r.Positive),
		zap.Float64("confidence", r.Confidence),
		zap.Int("risk_score", r.RiskScore),
		zap.Bool("verified", r.Verified))
	return &r
}

func cloneFeatures(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Schema describes the column contract currently in force.
func (s *Service) Schema() (ml.SchemaRef, error) {
	snap, err := s.registry.Current()
	if err != nil {
		return ml.UnavailableSchema(), err
	}
	return snap.Schema, nil
}
