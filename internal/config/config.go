package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete harness configuration.
type Config struct {
	Capture CaptureSection `yaml:"capture"`
	Sink    SinkConfig     `yaml:"sink"`
	HTTP    HTTPConfig     `yaml:"http"`
	Logging LoggingConfig  `yaml:"logging"`
}

// CaptureSection configures the audio data source.
type CaptureSection struct {
	Name        string            `yaml:"name"`
	Profile     string            `yaml:"profile"`
	Modes       []string          `yaml:"modes"`
	Mode        string            `yaml:"mode"`
	Encoder     string            `yaml:"encoder"`
	Command     string            `yaml:"command"`
	CommandArgs []string          `yaml:"command_args"`
	Settings    map[string]string `yaml:"settings"`
}

// SinkConfig configures segment persistence.
type SinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// HTTPConfig contains HTTP status server configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file, applying defaults for
// omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Capture: CaptureSection{
			Name:    "microphone",
			Profile: string(ProfileStudio),
			Modes:   []string{"all"},
			Mode:    "audio",
			Encoder: "wav",
		},
		Sink: SinkConfig{
			Enabled: true,
			Dir:     "captures",
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the capture section.
func (s *CaptureSection) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !Profile(s.Profile).Valid() {
		return fmt.Errorf("profile must be one of [voice, studio, custom], got '%s'", s.Profile)
	}

	if s.Mode == "" {
		return fmt.Errorf("mode cannot be empty")
	}

	if len(s.Modes) == 0 {
		return fmt.Errorf("modes cannot be empty")
	}

	validEncoders := map[string]bool{"wav": true, "raw": true}
	if !validEncoders[s.Encoder] {
		return fmt.Errorf("encoder must be 'wav' or 'raw', got '%s'", s.Encoder)
	}

	return nil
}

// Validate validates the sink section.
func (s *SinkConfig) Validate() error {
	if s.Enabled && s.Dir == "" {
		return fmt.Errorf("dir cannot be empty when sink is enabled")
	}

	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// CaptureSettings returns the capture section's settings as the string-keyed
// map consumed by DataSource.Initialize.
func (s *CaptureSection) CaptureSettings() Settings {
	settings := make(Settings, len(s.Settings))
	for k, v := range s.Settings {
		settings[k] = v
	}
	return settings
}
