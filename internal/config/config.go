package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SQLIMPORT_LOG_LEVEL
	EnvPrefix = "SQLIMPORT"
	// FileName is the config file looked up next to the executable and in
	// the working directory
	FileName = "sqlimport"
)

// Config is the resolved configuration of a run
type Config struct {
	IncludeAlterTable bool              `mapstructure:"include_alter_table"`
	Format            string            `mapstructure:"format"` // text, markdown, json
	Output            string            `mapstructure:"output"`
	OutputDir         string            `mapstructure:"output_dir"`
	Report            bool              `mapstructure:"report"`
	ReportDB          string            `mapstructure:"report_db"`
	FailOnError       bool              `mapstructure:"fail_on_error"`
	Tables            []string          `mapstructure:"tables"`
	ExcludeTables     []string          `mapstructure:"exclude_tables"`
	Types             map[string]string `mapstructure:"types"` // raw SQL type -> logical type
	Log               LoggingConfig     `mapstructure:"log"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
	Output string `mapstructure:"output"` // stderr, stdout, file
	File   string `mapstructure:"file"`   // log file path when output is file
}

// New returns a viper instance with defaults and environment lookup set up
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("include_alter_table", false)
	v.SetDefault("format", "text")
	v.SetDefault("report", false)
	v.SetDefault("fail_on_error", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile loads the config file. An explicit path must exist; otherwise
// sqlimport.yaml is searched next to the executable and in the working
// directory, and its absence is not an error. The used file is returned.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(ex))
		}
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load resolves the configuration from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case "text", "markdown", "md", "json":
	default:
		return fmt.Errorf("unsupported format %q (want text, markdown or json)", c.Format)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	switch strings.ToLower(c.Log.Output) {
	case "stdout", "stderr":
	case "file":
		if c.Log.File == "" {
			return errors.New("log file path is required when output is 'file'")
		}
	default:
		return fmt.Errorf("invalid log output: %s", c.Log.Output)
	}

	return nil
}
