package config

import (
	"errors"
	"os"
	"time"

	"heartdx/logger"
	"heartdx/ml"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log      logger.Config `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Model struct {
		Type       string `yaml:"type"`
		Path       string `yaml:"path"`
		ScalerPath string `yaml:"scaler_path"`
		SchemaPath string `yaml:"schema_path"`
		Watch      bool   `yaml:"watch"`
	} `yaml:"model"`
	Features struct {
		Defaults ml.DefaultPolicy `yaml:"defaults"`
	} `yaml:"features"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Report struct {
		Locale string `yaml:"locale"`
	} `yaml:"report"`
}

// Default returns the configuration used for any field the file leaves unset.
func Default() *Config {
	cfg := &Config{}
	cfg.Http.Port = 8080
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.AllowedOrigins = []string{"*"}
	cfg.Http.MaxBodyBytes = 1 << 16
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 50
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 30
	cfg.Database.Path = "data/heartdx.db"
	cfg.Model.Type = ml.ModelDecisionTree
	cfg.Model.Path = "models/final_model_dt.json"
	cfg.Model.ScalerPath = "models/scaler.json"
	cfg.Cache.Size = 1024
	cfg.Report.Locale = "en"
	return cfg
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Model.ScalerPath == "" {
		return errors.New("model.scaler_path is required")
	}
	if c.Http.Port <= 0 {
		return errors.New("http.port must be positive")
	}
	if c.Cache.Size < 0 {
		return errors.New("cache.size must not be negative")
	}
	return nil
}
