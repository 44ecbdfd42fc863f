// Package config provides configuration loading and management for
// dicomview3d. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"dicomview3d/internal/logging"
)

// WindowPreset is a named window width/center pair.
type WindowPreset struct {
	// Name identifies the preset, e.g. "bone" or "soft-tissue".
	Name string `yaml:"name"`

	// Width is the window width (contrast range) in HU.
	Width int `yaml:"width"`

	// Center is the window center (midpoint) in HU.
	Center int `yaml:"center"`
}

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers specifies how many parallel workers to use when
		// building the volume point cloud.
		Workers int `yaml:"workers"`

		// LowPercentile and HighPercentile are the histogram cutoffs used
		// by the automatic window optimizer.
		LowPercentile  float64 `yaml:"lowPercentile"`
		HighPercentile float64 `yaml:"highPercentile"`
	} `yaml:"processing"`

	// Preview parameters
	Preview struct {
		// DebounceMillis is the delay applied to continuously-changing
		// plane parameters before an oblique extraction is started.
		DebounceMillis int `yaml:"debounceMillis"`
	} `yaml:"preview"`

	// Window presets selectable by name
	Presets []WindowPreset `yaml:"presets"`

	// Export parameters
	Export struct {
		// JPEGQuality is the quality used when encoding JPEG output.
		JPEGQuality int `yaml:"jpegQuality"`
	} `yaml:"export"`

	// Log configures the optional rotating log file.
	Log logging.Config `yaml:"log"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.LowPercentile = 0.05
	cfg.Processing.HighPercentile = 0.95

	// Set default preview parameters
	cfg.Preview.DebounceMillis = 150

	// Set default window presets
	cfg.Presets = []WindowPreset{
		{Name: "soft-tissue", Width: 400, Center: 40},
		{Name: "bone", Width: 1800, Center: 400},
		{Name: "brain", Width: 80, Center: 40},
	}

	// Set default export parameters
	cfg.Export.JPEGQuality = 90

	return cfg
}

// Preset looks up a window preset by name.
func (c *Config) Preset(name string) (WindowPreset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return WindowPreset{}, false
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
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

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
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
