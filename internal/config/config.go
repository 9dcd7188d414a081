package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFrequency = 60.0
	DefaultPreset    = "Antipodal Circle - 9"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

type Config struct {
	Frequency float64   `yaml:"frequency"`
	Preset    string    `yaml:"preset"`
	Scenario  *Scenario `yaml:"scenario,omitempty"`
	Log       LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Scenario is handed to the engine as JSON. The controller never looks
// inside it; the fields mirror what the engine's scenario loader accepts.
type Scenario struct {
	Scenario           string  `yaml:"scenario" json:"scenario"`
	AgentsCount        int     `yaml:"agents_count,omitempty" json:"agents_count,omitempty"`
	Radius             float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	AgentsPerSideCount int     `yaml:"agents_per_side_count,omitempty" json:"agents_per_side_count,omitempty"`
	Length             float64 `yaml:"length,omitempty" json:"length,omitempty"`
	Width              float64 `yaml:"width,omitempty" json:"width,omitempty"`
}

// Serialize returns the JSON form consumed by engine.LoadScenario. Every
// field of a known kind is written, zeros included, so an explicit zero is
// never replaced by the engine's default.
func (s Scenario) Serialize() (string, error) {
	var v any = s
	switch s.Scenario {
	case "AntipodalCircle":
		v = struct {
			Scenario    string  `json:"scenario"`
			AgentsCount int     `json:"agents_count"`
			Radius      float64 `json:"radius"`
		}{s.Scenario, s.AgentsCount, s.Radius}
	case "Corridor":
		v = struct {
			Scenario           string  `json:"scenario"`
			AgentsPerSideCount int     `json:"agents_per_side_count"`
			Length             float64 `json:"length"`
			Width              float64 `json:"width"`
		}{s.Scenario, s.AgentsPerSideCount, s.Length, s.Width}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize scenario %q: %w", s.Scenario, err)
	}
	return string(data), nil
}

// ValidFrequency reports whether f can drive a loop: positive and finite.
// NaN fails the comparison.
func ValidFrequency(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

func DefaultConfig() *Config {
	return &Config{
		Frequency: DefaultFrequency,
		Preset:    DefaultPreset,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if !ValidFrequency(c.Frequency) {
		return fmt.Errorf("frequency must be positive and finite, got %f", c.Frequency)
	}
	if c.Scenario == nil && GetPreset(c.Preset) == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", c.Preset, ListPresets())
	}
	return nil
}

// ResolveScenario returns the inline scenario if one is set, the preset otherwise.
func (c *Config) ResolveScenario() (Scenario, error) {
	if c.Scenario != nil {
		return *c.Scenario, nil
	}
	p := GetPreset(c.Preset)
	if p == nil {
		return Scenario{}, fmt.Errorf("unknown preset: %s", c.Preset)
	}
	return *p, nil
}

// LoadScenario reads a single scenario from a YAML file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Scenario == "" {
		return Scenario{}, fmt.Errorf("%s: missing scenario kind", path)
	}
	return s, nil
}
