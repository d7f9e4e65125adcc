// Package config defines the application configuration, its defaults, and
// the YAML loader with environment-variable interpolation.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration for threat-grapher.
type Config struct {
	Core    CoreConfig    `mapstructure:"core" yaml:"core" validate:"required"`
	Parser  ParserConfig  `mapstructure:"parser" yaml:"parser"`
	Sampler SamplerConfig `mapstructure:"sampler" yaml:"sampler"`
	Quality QualityConfig `mapstructure:"quality" yaml:"quality"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	// DataDir is the root of the attack-technique exercise tree.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// KnowledgeBasePath is the STIX bundle file.
	KnowledgeBasePath string        `mapstructure:"knowledge_base_path" yaml:"knowledge_base_path"`
	ParallelLimit     int           `mapstructure:"parallel_limit" yaml:"parallel_limit" validate:"min=1,max=100"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// ParserConfig bounds single-file parsing.
type ParserConfig struct {
	MaxEvents   int   `mapstructure:"max_events" yaml:"max_events" validate:"min=1"`
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size" validate:"min=1024"`
}

// SamplerConfig bounds the corpus coverage sampling pass.
type SamplerConfig struct {
	MaxLogFiles  int `mapstructure:"max_log_files" yaml:"max_log_files" validate:"min=1"`
	MaxJSONFiles int `mapstructure:"max_json_files" yaml:"max_json_files" validate:"min=1"`
	// Seed fixes the random sample when non-negative; -1 samples freshly
	// each run.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// QualityConfig locates the rating administration files.
type QualityConfig struct {
	DataSourcePath string `mapstructure:"data_source_path" yaml:"data_source_path"`
	TechniquePath  string `mapstructure:"technique_path" yaml:"technique_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"min=0,max=1"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			DataDir:           filepath.Join(homeDir, "attack_techniques"),
			KnowledgeBasePath: filepath.Join(homeDir, "enterprise-attack.json"),
			ParallelLimit:     8,
			Timeout:           5 * time.Minute,
			Debug:             false,
		},
		Parser: ParserConfig{
			MaxEvents:   2000,
			MaxFileSize: 5 * 1024 * 1024,
		},
		Sampler: SamplerConfig{
			MaxLogFiles:  200,
			MaxJSONFiles: 50,
			Seed:         -1,
		},
		Quality: QualityConfig{
			DataSourcePath: filepath.Join(homeDir, "coverage", "data_sources_admin.yml"),
			TechniquePath:  filepath.Join(homeDir, "coverage", "technique_admin.yml"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "",
			SampleRate:  1.0,
			ServiceName: "threat-grapher",
		},
	}
}

// getDefaultHomeDir returns the default data directory, ~/.threat-grapher,
// falling back to a temporary directory if user home cannot be determined.
func getDefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".threat-grapher")
	}
	return filepath.Join(userHome, ".threat-grapher")
}
