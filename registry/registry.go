// Package registry owns the loaded model artifacts and reloads them when the
// files on disk change.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"heartdx/logger"
	"heartdx/ml"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type Paths struct {
	ModelType  string
	ModelPath  string
	ScalerPath string
	// SchemaPath is optional; used only when the model does not declare its
	// own feature names.
	SchemaPath string
}

// Snapshot is one consistent set of artifacts.
type Snapshot struct {
	Generation uint64
	Model      ml.Classifier
	Scaler     ml.ContinuousScaler
	Schema     ml.SchemaRef
	LoadedAt   time.Time
}

type Registry struct {
	paths   Paths
	mu      sync.RWMutex
	current *Snapshot
	gen     uint64

	debounce time.Duration
}

func New(paths Paths) *Registry {
	return &Registry{paths: paths, debounce: 200 * time.Millisecond}
}

// NewStatic wraps already-loaded artifacts; Load and Watch are not used.
func NewStatic(model ml.Classifier, scaler ml.ContinuousScaler, fallback ml.SchemaRef) *Registry {
	r := &Registry{}
	r.install(model, scaler, resolveSchema(model, fallback))
	return r
}

// Load reads every artifact and swaps them in together. On failure the
// previous snapshot stays active.
func (r *Registry) Load() error {
	model, err := ml.LoadModel(r.paths.ModelType, r.paths.ModelPath)
	if err != nil {
		return fmt.Errorf("load model %s: %w", r.paths.ModelPath, err)
	}
	scaler, err := ml.LoadScaler(r.paths.ScalerPath)
	if err != nil {
		return fmt.Errorf("load scaler %s: %w", r.paths.ScalerPath, err)
	}
	fallback := ml.UnavailableSchema()
	if r.paths.SchemaPath != "" {
		schema, err := ml.LoadSchema(r.paths.SchemaPath)
		if err != nil {
			return fmt.Errorf("load schema %s: %w", r.paths.SchemaPath, err)
		}
		fallback = ml.KnownSchema(schema)
	}

	snap := r.install(model, scaler, resolveSchema(model, fallback))
	logger.L().Info("model artifacts loaded",
		zap.Uint64("generation", snap.Generation),
		zap.String("model_type", r.paths.ModelType),
		zap.String("schema", snap.Schema.String()))
	return nil
}

func resolveSchema(model ml.Classifier, fallback ml.SchemaRef) ml.SchemaRef {
	declared := ml.DeclaredSchema(model)
	if _, ok := declared.Schema(); ok {
		return declared
	}
	return fallback
}

func (r *Registry) install(model ml.Classifier, scaler ml.ContinuousScaler, schema ml.SchemaRef) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.current = &Snapshot{
		Generation: r.gen,
		Model:      model,
		Scaler:     scaler,
		Schema:     schema,
		LoadedAt:   time.Now(),
	}
	return r.current
}

// Current returns the active snapshot, or an error if nothing is loaded.
func (r *Registry) Current() (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, errors.New("model artifacts not loaded")
	}
	return r.current, nil
}

func (r *Registry) files() []string {
	files := []string{r.paths.ModelPath, r.paths.ScalerPath}
	if r.paths.SchemaPath != "" {
		files = append(files, r.paths.SchemaPath)
	}
	return files
}

// Watch reloads the artifacts whenever one of their files is written or
// replaced. It blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch directories so atomic renames over the artifact are seen.
	tracked := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range r.files() {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		tracked[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if !tracked[abs] || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := r.Load(); err != nil {
				logger.L().Error("reload failed, keeping previous artifacts", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.L().Warn("artifact watcher error", zap.Error(err))
		}
	}
}
