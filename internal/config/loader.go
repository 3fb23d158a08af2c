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
	// envPrefix is the prefix for environment variable overrides.
	envPrefix = "PHASEGATE"

	// envConfigPath names the variable pointing at an explicit config file.
	envConfigPath = "PHASEGATE_CONFIG_PATH"
)

// Loader handles configuration loading using Viper.
//
// Create one with [NewLoader], then call [Loader.Load] for the standard
// resolution chain or [Loader.LoadFromFile] for an explicit file.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load loads configuration using the standard resolution chain: defaults,
// then a config file (PHASEGATE_CONFIG_PATH if set, otherwise a discovered
// ./.phasegate/config.yaml), then PHASEGATE_* environment overrides on
// top. A missing discovered file is not an error; a missing explicit file
// is.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	if path := os.Getenv(envConfigPath); path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		return l.unmarshal()
	}

	l.v.SetConfigName("config")
	l.v.SetConfigType("yaml")
	l.v.AddConfigPath(filepath.Join(".", ".phasegate"))
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadFromFile loads configuration from the given file, with environment
// overrides still applied on top.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return l.unmarshal()
}

// setDefaults registers every config key with Viper. Keys must be known to
// Viper for environment overrides to survive Unmarshal.
func (l *Loader) setDefaults() {
	def := DefaultConfig()
	l.v.SetDefault("state.dir", def.State.Dir)
	l.v.SetDefault("state.workflows_dir", def.State.WorkflowsDir)
	l.v.SetDefault("verify.timeout", def.Verify.Timeout)
	l.v.SetDefault("verify.work_dir", def.Verify.WorkDir)
	l.v.SetDefault("output.json", def.Output.JSON)
}

// bindEnv wires environment variable overrides. On top of the automatic
// PHASEGATE_<SECTION>_<KEY> mapping, the settings operators override most
// often get short ergonomic names.
func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	_ = l.v.BindEnv("state.dir", "PHASEGATE_STATE_DIR")
	_ = l.v.BindEnv("state.workflows_dir", "PHASEGATE_WORKFLOWS_DIR")
	_ = l.v.BindEnv("verify.work_dir", "PHASEGATE_WORK_DIR")
	_ = l.v.BindEnv("verify.timeout", "PHASEGATE_VERIFY_TIMEOUT")
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}
