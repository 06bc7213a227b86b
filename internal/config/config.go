package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configurable paths and loader settings.
type Config struct {
	// Paths
	BaseDir   string `yaml:"base_dir"`
	OutputDir string `yaml:"output_dir"`
	Manifest  string `yaml:"manifest"`

	Logging Logging `yaml:"logging"`
	Remote  Remote  `yaml:"remote"`
	Frame   Frame   `yaml:"frame"`
}

// Logging selects the log level and format ("text" or "json").
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Remote configures the network loader.
type Remote struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

// Frame configures the frame pump.
type Frame struct {
	FPS     int           `yaml:"fps"`
	Timeout time.Duration `yaml:"timeout"`
	Monitor bool          `yaml:"monitor"`
}

// Load reads a YAML config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	DataDir   string
	OutputDir string
	LogLevel  string
	FPS       int
	Timeout   time.Duration
	Monitor   bool
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.DataDir != "" {
		c.BaseDir = flags.DataDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
	if flags.FPS > 0 {
		c.Frame.FPS = flags.FPS
	}
	if flags.Timeout > 0 {
		c.Frame.Timeout = flags.Timeout
	}
	if flags.Monitor {
		c.Frame.Monitor = true
	}

	if c.BaseDir == "" {
		c.BaseDir, _ = os.Getwd()
	}

	// Resolve relative paths against base dir
	if c.OutputDir == "" {
		c.OutputDir = c.BaseDir
	} else if !filepath.IsAbs(c.OutputDir) {
		c.OutputDir = filepath.Join(c.BaseDir, c.OutputDir)
	}
	if c.Manifest != "" && !filepath.IsAbs(c.Manifest) {
		c.Manifest = filepath.Join(c.OutputDir, c.Manifest)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 30 * time.Second
	}
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = "image-resource-cache"
	}

	if c.Frame.FPS <= 0 {
		c.Frame.FPS = 60
	}
	if c.Frame.Timeout <= 0 {
		c.Frame.Timeout = time.Minute
	}
}
