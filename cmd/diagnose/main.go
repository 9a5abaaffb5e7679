// Command diagnose runs a single patient's vitals through the model and
// prints the diagnostic report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"heartdx/config"
	"heartdx/diagnosis"
	"heartdx/logger"
	"heartdx/ml"
	"heartdx/registry"
)

type options struct {
	configPath string
	paths      registry.Paths
	locale     string
	logLevel   string
	vitals     ml.RawVitals
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("diagnose", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "optional config file; supplies artifact paths, feature defaults and locale")
	fs.StringVar(&opts.paths.ModelType, "model_type", ml.ModelDecisionTree, "model type")
	fs.StringVar(&opts.paths.ModelPath, "model_path", "./models/final_model_dt.json", "model artifact path")
	fs.StringVar(&opts.paths.ScalerPath, "scaler_path", "./models/scaler.json", "scaler artifact path")
	fs.StringVar(&opts.paths.SchemaPath, "schema_path", "", "optional column schema for models without feature names")
	fs.StringVar(&opts.locale, "locale", "en", "report locale")
	fs.StringVar(&opts.logLevel, "log_level", "warn", "log level")

	raw := &opts.vitals
	fs.IntVar(&raw.Age, "age", 0, "patient age (1-120)")
	fs.IntVar(&raw.Sex, "sex", 0, "sex (1=male, 0=female)")
	fs.IntVar(&raw.CP, "cp", 0, "chest pain type (0=asymptomatic, 1=atypical angina, 2=non-anginal, 3=typical angina)")
	fs.IntVar(&raw.TrestBPS, "trestbps", 0, "resting blood pressure, mm Hg (50-250)")
	fs.IntVar(&raw.Chol, "chol", 0, "serum cholesterol, mg/dl (100-600)")
	fs.IntVar(&raw.Thalach, "thalach", 0, "max heart rate achieved (50-250)")
	fs.IntVar(&raw.Exang, "exang", 0, "exercise induced angina (1=yes, 0=no)")
	fs.Float64Var(&raw.Oldpeak, "oldpeak", 0, "ST depression (0.0-10.0)")
	fs.IntVar(&raw.Slope, "slope", 0, "slope of peak exercise ST (0=downsloping, 1=flat, 2=upsloping)")
	fs.IntVar(&raw.CA, "ca", 0, "major vessels colored by fluoroscopy (0-3)")
	fs.IntVar(&raw.Thal, "thal", 0, "thalassemia (0=unknown, 1=fixed, 2=normal, 3=reversible)")
	return fs
}

// parseArgs parses args and checks that every vital was given explicitly.
func parseArgs(args []string) (*options, map[string]bool, error) {
	opts := &options{}
	fs := newFlagSet(opts)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var missing []string
	for _, name := range ml.VitalFields() {
		if !set[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &ml.MissingFieldsError{Fields: missing}
	}
	return opts, set, nil
}

// applyConfig fills artifact paths and locale from cfg unless the flag was
// set explicitly, and returns the feature defaults the server would use.
func applyConfig(opts *options, set map[string]bool, cfg *config.Config) ml.DefaultPolicy {
	fromConfig := map[string]struct {
		dst *string
		val string
	}{
		"model_type":  {&opts.paths.ModelType, cfg.Model.Type},
		"model_path":  {&opts.paths.ModelPath, cfg.Model.Path},
		"scaler_path": {&opts.paths.ScalerPath, cfg.Model.ScalerPath},
		"schema_path": {&opts.paths.SchemaPath, cfg.Model.SchemaPath},
		"locale":      {&opts.locale, cfg.Report.Locale},
	}
	for name, f := range fromConfig {
		if !set[name] && f.val != "" {
			*f.dst = f.val
		}
	}
	return cfg.Features.Defaults
}

func main() {
	opts, set, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("invalid arguments: %v", err)
	}

	var defaults ml.DefaultPolicy
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		defaults = applyConfig(opts, set, cfg)
	}

	if err := logger.Init(logger.Config{Level: opts.logLevel}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := opts.vitals.Validate(); err != nil {
		log.Fatalf("invalid vitals: %v", err)
	}

	reg := registry.New(opts.paths)
	if err := reg.Load(); err != nil {
		log.Fatalf("failed to load model artifacts: %v\ndid you export the trained model and scaler?", err)
	}

	svc, err := diagnosis.NewService(reg, diagnosis.Options{Defaults: defaults})
	if err != nil {
		log.Fatalf("failed to create diagnosis service: %v", err)
	}

	report, err := svc.Diagnose(context.Background(), opts.vitals)
	if err != nil {
		var mismatch *ml.SchemaMismatchError
		if errors.As(err, &mismatch) {
			log.Fatalf("model schema drift: %v", err)
		}
		log.Fatalf("diagnosis failed: %v", err)
	}

	fmt.Fprint(os.Stdout, report.Format(opts.locale))
}
