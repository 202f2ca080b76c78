// Package config provides configuration loading and management for tracerfit.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"tracerfit/internal/models"
	"tracerfit/pkg/confidence"
	"tracerfit/pkg/fitting"
	"tracerfit/pkg/forward"
	"tracerfit/pkg/model"
	"tracerfit/pkg/tracer"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers bounds how many refits of the confidence pass run at once
		Workers int `yaml:"workers"`

		// Seed makes the confidence resampling reproducible
		Seed uint64 `yaml:"seed"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"processing"`

	// Tracer parameters
	Tracer struct {
		// HalfLife of the tracer in years, used when DecayConstant is unset
		HalfLife float64 `yaml:"halfLife"`

		// DecayConstant overrides HalfLife when set; 0 disables decay
		DecayConstant *float64 `yaml:"decayConstant,omitempty"`

		// Infiltration is the infiltration fraction of the summer months
		Infiltration float64 `yaml:"infiltration"`
	} `yaml:"tracer"`

	// Fitting parameters
	Fitting struct {
		// MaxIterations caps the optimizer iterations of each fit
		MaxIterations int `yaml:"maxIterations"`

		// Precision is the number of decimals fitted parameters are rounded to
		Precision int `yaml:"precision"`

		// HorizonMass is the response mass the lag grid must capture
		HorizonMass float64 `yaml:"horizonMass"`

		// MaxHorizon caps the lag grid length
		MaxHorizon int `yaml:"maxHorizon"`
	} `yaml:"fitting"`

	// Confidence parameters
	Confidence struct {
		// Enabled runs the confidence pass after every fit
		Enabled bool `yaml:"enabled"`

		// Replicates is the number of resampled observation sets
		Replicates int `yaml:"replicates"`

		// Band is the relative half-width of the band around fitted values
		Band float64 `yaml:"band"`

		// ZScore is the normal quantile of the fallback interval
		ZScore float64 `yaml:"zScore"`

		// TightenBounds refits within the band instead of the model bounds
		TightenBounds bool `yaml:"tightenBounds"`
	} `yaml:"confidence"`

	// Models lists the model configurations to fit, in order
	Models []tracer.ModelConfig `yaml:"models"`

	// Input files
	Input struct {
		// InputFile is the monthly input CSV
		InputFile string `yaml:"inputFile"`

		// ObservationFile is the observations CSV
		ObservationFile string `yaml:"observationFile"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// ResultFile receives the YAML results; empty skips it
		ResultFile string `yaml:"resultFile"`

		// ParquetDir receives the Parquet tables; empty skips them
		ParquetDir string `yaml:"parquetDir"`

		// Color enables colored terminal tables
		Color bool `yaml:"color"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Seed = 1
	cfg.Processing.Verbose = false

	// Set default tracer parameters (tritium)
	cfg.Tracer.HalfLife = tracer.TritiumHalfLife
	cfg.Tracer.Infiltration = 0.5

	// Set default fitting parameters
	cfg.Fitting.MaxIterations = fitting.DefaultMaxIterations
	cfg.Fitting.Precision = fitting.DefaultPrecision
	cfg.Fitting.HorizonMass = forward.DefaultHorizonMass
	cfg.Fitting.MaxHorizon = forward.DefaultMaxHorizon

	// Set default confidence parameters
	cfg.Confidence.Enabled = false
	cfg.Confidence.Replicates = confidence.DefaultReplicates
	cfg.Confidence.Band = confidence.DefaultBand
	cfg.Confidence.ZScore = confidence.DefaultZ
	cfg.Confidence.TightenBounds = true

	cfg.Models = []tracer.ModelConfig{
		{Kind: string(model.Exponential), Bounds: []model.Bound{{Lower: 20, Upper: 90}}},
		{Kind: string(model.PistonFlow), Bounds: []model.Bound{{Lower: 1, Upper: 60}}},
	}

	cfg.Input.InputFile = "input.csv"
	cfg.Input.ObservationFile = "observations.csv"

	cfg.Output.Color = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML. A models list in the file replaces the default one.
	cfg.Models = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if cfg.Models == nil {
		cfg.Models = DefaultConfig().Models
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the values that cannot be defaulted downstream
func (c *Config) Validate() error {
	var errs []error
	if c.Processing.Workers < 0 {
		errs = append(errs, fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers))
	}
	if c.Tracer.Infiltration < 0 || c.Tracer.Infiltration > 1 {
		errs = append(errs, fmt.Errorf("tracer.infiltration must be in [0, 1], got %g", c.Tracer.Infiltration))
	}
	if c.Tracer.DecayConstant != nil && *c.Tracer.DecayConstant < 0 {
		errs = append(errs, fmt.Errorf("tracer.decayConstant must not be negative, got %g", *c.Tracer.DecayConstant))
	}
	if c.Fitting.HorizonMass < 0 || c.Fitting.HorizonMass >= 1 {
		errs = append(errs, fmt.Errorf("fitting.horizonMass must be in [0, 1), got %g", c.Fitting.HorizonMass))
	}
	if c.Confidence.Band < 0 || c.Confidence.Band >= 1 {
		errs = append(errs, fmt.Errorf("confidence.band must be in [0, 1), got %g", c.Confidence.Band))
	}
	if _, err := tracer.Spaces(c.Models); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return models.NewOpError("config", models.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Decay returns the decay constant: DecayConstant when set, otherwise
// derived from HalfLife.
func (c *Config) Decay() float64 {
	if c.Tracer.DecayConstant != nil {
		return *c.Tracer.DecayConstant
	}
	return tracer.DecayConstant(c.Tracer.HalfLife)
}

// TracerParams converts the configuration into run settings
func (c *Config) TracerParams() *tracer.Params {
	return &tracer.Params{
		Decay: c.Decay(),
		Fitting: fitting.Options{
			Forward: forward.Options{
				HorizonMass: c.Fitting.HorizonMass,
				MaxHorizon:  c.Fitting.MaxHorizon,
			},
			MaxIterations: c.Fitting.MaxIterations,
			Precision:     c.Fitting.Precision,
		},
		Confidence: confidence.Options{
			Replicates:    c.Confidence.Replicates,
			Workers:       c.Processing.Workers,
			Seed:          c.Processing.Seed,
			Band:          c.Confidence.Band,
			Z:             c.Confidence.ZScore,
			TightenBounds: c.Confidence.TightenBounds,
		},
	}
}
