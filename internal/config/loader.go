package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles loading configuration from files.
type Loader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperLoader implements Loader using Viper.
type viperLoader struct {
	validator Validator
}

// NewLoader creates a new Loader instance.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

// Load loads configuration from the specified file path. Defaults fill any
// key the file omits; ${VAR} references are replaced from the environment.
// Returns an error if the file doesn't exist or cannot be parsed.
func (l *viperLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	interpolateConfig(&cfg)

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration from the specified file path. If the
// file doesn't exist, returns the default configuration.
func (l *viperLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := l.validator.Validate(cfg); err != nil {
			return nil, fmt.Errorf("default configuration validation failed: %w", err)
		}
		return cfg, nil
	}
	return l.Load(path)
}

// setDefaults registers DefaultConfig values so partial files inherit them.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("core.data_dir", def.Core.DataDir)
	v.SetDefault("core.knowledge_base_path", def.Core.KnowledgeBasePath)
	v.SetDefault("core.parallel_limit", def.Core.ParallelLimit)
	v.SetDefault("core.timeout", def.Core.Timeout)
	v.SetDefault("core.debug", def.Core.Debug)
	v.SetDefault("parser.max_events", def.Parser.MaxEvents)
	v.SetDefault("parser.max_file_size", def.Parser.MaxFileSize)
	v.SetDefault("sampler.max_log_files", def.Sampler.MaxLogFiles)
	v.SetDefault("sampler.max_json_files", def.Sampler.MaxJSONFiles)
	v.SetDefault("sampler.seed", def.Sampler.Seed)
	v.SetDefault("quality.data_source_path", def.Quality.DataSourcePath)
	v.SetDefault("quality.technique_path", def.Quality.TechniquePath)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("tracing.enabled", def.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", def.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", def.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", def.Tracing.ServiceName)
}

// interpolateConfig replaces ${VAR_NAME} references in the string-valued
// settings that commonly carry paths or endpoints.
func interpolateConfig(cfg *Config) {
	cfg.Core.DataDir = interpolateString(cfg.Core.DataDir)
	cfg.Core.KnowledgeBasePath = interpolateString(cfg.Core.KnowledgeBasePath)
	cfg.Quality.DataSourcePath = interpolateString(cfg.Quality.DataSourcePath)
	cfg.Quality.TechniquePath = interpolateString(cfg.Quality.TechniquePath)
	cfg.Tracing.Endpoint = interpolateString(cfg.Tracing.Endpoint)
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable values.
// Unset variables leave the reference in place.
func interpolateString(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue := os.Getenv(varName); envValue != "" {
			return envValue
		}
		return match
	})
}
