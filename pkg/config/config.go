// Package config provides configuration loading and management for dicomreslice.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"dicomreslice/pkg/normalize"
)

// Config represents the application configuration loaded from YAML or TOML
type Config struct {
	// Loading parameters
	Loading struct {
		// NumCores bounds how many frames are normalized concurrently
		NumCores int `yaml:"numCores" toml:"num_cores"`

		// Source is "dicom" for .dcm folders or "image" for raster slices
		Source string `yaml:"source" toml:"source"`

		// DegenerateFrames is "error" or "zero" for constant-valued frames
		DegenerateFrames string `yaml:"degenerateFrames" toml:"degenerate_frames"`
	} `yaml:"loading" toml:"loading"`

	// Annotation parameters
	Annotation struct {
		// MaxPerSlice caps points and boxes per axial slice; 0 is unbounded
		MaxPerSlice int `yaml:"maxPerSlice" toml:"max_per_slice"`
	} `yaml:"annotation" toml:"annotation"`

	// Rendering parameters
	Rendering struct {
		Scale       int     `yaml:"scale" toml:"scale"`
		PointRadius float64 `yaml:"pointRadius" toml:"point_radius"`

		// Format is "png" or "jpeg"
		Format    string `yaml:"format" toml:"format"`
		Labels    bool   `yaml:"labels" toml:"labels"`
		CacheSize int    `yaml:"cacheSize" toml:"cache_size"`
	} `yaml:"rendering" toml:"rendering"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose"`

		// LogFile sends logs to a rotating file instead of stderr
		LogFile    string `yaml:"logFile" toml:"log_file"`
		MaxLogSize int    `yaml:"maxLogSize" toml:"max_log_size"`
		MaxLogAge  int    `yaml:"maxLogAge" toml:"max_log_age"`
	} `yaml:"output" toml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Loading.NumCores = runtime.NumCPU()
	cfg.Loading.Source = "dicom"
	cfg.Loading.DegenerateFrames = "error"

	cfg.Annotation.MaxPerSlice = 0

	cfg.Rendering.Scale = 1
	cfg.Rendering.PointRadius = 3
	cfg.Rendering.Format = "png"
	cfg.Rendering.Labels = false
	cfg.Rendering.CacheSize = 64

	cfg.Output.Verbose = false
	cfg.Output.MaxLogSize = 100
	cfg.Output.MaxLogAge = 30

	return cfg
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by
// extension. If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	if c.Loading.NumCores < 0 {
		return fmt.Errorf("loading.numCores must be >= 0, got %d", c.Loading.NumCores)
	}
	switch c.Loading.Source {
	case "dicom", "image":
	default:
		return fmt.Errorf("loading.source must be dicom or image, got %q", c.Loading.Source)
	}
	if _, err := normalize.ParsePolicy(c.Loading.DegenerateFrames); err != nil {
		return err
	}
	if c.Annotation.MaxPerSlice < 0 {
		return fmt.Errorf("annotation.maxPerSlice must be >= 0, got %d", c.Annotation.MaxPerSlice)
	}
	if c.Rendering.Scale < 1 {
		return fmt.Errorf("rendering.scale must be >= 1, got %d", c.Rendering.Scale)
	}
	switch strings.ToLower(c.Rendering.Format) {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("rendering.format must be png or jpeg, got %q", c.Rendering.Format)
	}
	if c.Rendering.CacheSize < 1 {
		return fmt.Errorf("rendering.cacheSize must be >= 1, got %d", c.Rendering.CacheSize)
	}
	return nil
}

// DegeneratePolicy returns the parsed loading.degenerateFrames policy.
func (c *Config) DegeneratePolicy() normalize.Policy {
	p, _ := normalize.ParsePolicy(c.Loading.DegenerateFrames)
	return p
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

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
