// Package model defines the data structures for the detector's configuration,
// metric series, and classification results.
package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Output     OutputConfig     `yaml:"output"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type PrometheusConfig struct {
	URL          string `yaml:"url"`
	JobName      string `yaml:"job_name"` // specific job, or "all" to discover
	LookbackDays int    `yaml:"lookback_days"`
	StepSeconds  int    `yaml:"step_seconds"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type AnalysisConfig struct {
	BatchSize       int `yaml:"batch_size"`
	BatchDelaySec   int `yaml:"batch_delay_sec"`
	MaxParallelJobs int `yaml:"max_parallel_jobs"`
}

type OutputConfig struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig reads and validates a YAML config file. Missing or unreadable
// config is a fatal condition surfaced to the caller.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Prometheus.JobName == "" {
		c.Prometheus.JobName = "all"
	}
	if c.Prometheus.LookbackDays <= 0 {
		c.Prometheus.LookbackDays = 14
	}
	if c.Prometheus.StepSeconds <= 0 {
		c.Prometheus.StepSeconds = 3600
	}
	if c.Analysis.BatchSize <= 0 {
		c.Analysis.BatchSize = 10
	}
	if c.Analysis.BatchDelaySec < 0 {
		c.Analysis.BatchDelaySec = 0
	}
	if c.Analysis.MaxParallelJobs <= 0 {
		c.Analysis.MaxParallelJobs = 4
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	if c.Prometheus.URL == "" {
		return fmt.Errorf("config: prometheus.url is required")
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("config: output.directory is required")
	}
	if c.Output.Filename == "" {
		return fmt.Errorf("config: output.filename is required")
	}
	return nil
}
