// Package config resolves gitgate runtime settings from defaults, an
// optional YAML file and GITGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file picked up when none is given. Relative to
// the repository directory hooks run in.
const DefaultPath = "hooks/gitgate.yaml"

// EnvPrefix prefixes every environment override, e.g. GITGATE_POLICY.
const EnvPrefix = "GITGATE"

// Config holds resolved runtime configuration.
type Config struct {
	// Policy is the users policy file (JSON, JSONC or YAML).
	Policy string `mapstructure:"policy" yaml:"policy" validate:"required"`

	// AuditLog is the hash-chained decision log. Empty disables auditing.
	AuditLog string `mapstructure:"audit_log" yaml:"audit_log,omitempty"`

	// GitDir overrides the repository; empty uses GIT_DIR from the hook.
	GitDir string `mapstructure:"git_dir" yaml:"git_dir,omitempty"`

	GitBinary      string        `mapstructure:"git_binary" yaml:"git_binary" validate:"required"`
	HistoryTimeout time.Duration `mapstructure:"history_timeout" yaml:"history_timeout" validate:"gte=0"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn error disabled"`
	LogFormat      string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=console json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Policy:         "hooks/users.json",
		GitBinary:      "git",
		HistoryTimeout: 10 * time.Second,
		LogLevel:       "warn",
		LogFormat:      "console",
	}
}

// Load resolves configuration. An explicit path must exist; without one,
// DefaultPath is read if present and defaults are used otherwise.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("policy", def.Policy)
	v.SetDefault("audit_log", def.AuditLog)
	v.SetDefault("git_dir", def.GitDir)
	v.SetDefault("git_binary", def.GitBinary)
	v.SetDefault("history_timeout", def.HistoryTimeout)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	switch {
	case path != "":
		v.SetConfigFile(path)
	case fileExists(DefaultPath):
		v.SetConfigFile(DefaultPath)
	}

	if v.ConfigFileUsed() != "" {
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and reports every failing field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// YAML renders cfg as a config file.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return "# gitgate configuration\n# Environment overrides: GITGATE_POLICY, GITGATE_AUDIT_LOG, GITGATE_LOG_LEVEL, ...\n" + string(out), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
