package export

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tracerfit/pkg/fitting"
)

// Summary is the document written by WriteYAML
type Summary struct {
	StartYear int                      `yaml:"startYear"`
	Decay     float64                  `yaml:"decay"`
	Results   []*fitting.FittingResult `yaml:"results"`
}

// WriteYAML writes the summary of a run, without its curves, to path
func WriteYAML(path string, summary Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating result directory: %w", err)
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("error marshaling results: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing result file: %w", err)
	}
	return nil
}

// ReadYAML reads a summary written by WriteYAML
func ReadYAML(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("error reading result file: %w", err)
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("error parsing result file: %w", err)
	}
	return s, nil
}
