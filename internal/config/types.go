// Package config provides configuration loading and management for phasegate.
//
// Configuration is loaded using Viper, supporting YAML config files and
// environment variable overrides. The defaults work out of the box for a
// working-tree-scoped setup: instance state lives under ./.phasegate and
// workflow definitions under ./.phasegate/workflows.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [StateConfig] locates the state and workflow directories
//   - [VerifyConfig] controls verification gate execution
//
// Configuration priority (highest to lowest):
//  1. Environment variables (PHASEGATE_ prefix, e.g. PHASEGATE_STATE_DIR)
//  2. Config file specified by PHASEGATE_CONFIG_PATH
//  3. ./.phasegate/config.yaml in the working tree
//  4. [DefaultConfig] defaults
package config

import "time"

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used
// throughout the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// State locates the directories phasegate reads and writes.
	State StateConfig `mapstructure:"state"`

	// Verify contains verification gate execution settings.
	Verify VerifyConfig `mapstructure:"verify"`

	// Output contains terminal output configuration.
	Output OutputConfig `mapstructure:"output"`
}

// StateConfig locates the working-tree-scoped directories that hold
// instance records and workflow definitions.
type StateConfig struct {
	// Dir is the state directory holding one record file per instance.
	// Default: ".phasegate".
	// Can be overridden with the PHASEGATE_STATE_DIR environment variable.
	Dir string `mapstructure:"dir"`

	// WorkflowsDir is where definition files are resolved when a workflow
	// is referenced by name rather than by path.
	// Default: ".phasegate/workflows".
	// Can be overridden with PHASEGATE_WORKFLOWS_DIR.
	WorkflowsDir string `mapstructure:"workflows_dir"`
}

// VerifyConfig controls how verification gates execute.
type VerifyConfig struct {
	// Timeout bounds a single gate evaluation. A gate that overruns it is
	// recorded as inconclusive, not failed. Default: 2m.
	Timeout time.Duration `mapstructure:"timeout"`

	// WorkDir is the directory command and resource checks run against.
	// Default: "." (the current working tree).
	// Can be overridden with PHASEGATE_WORK_DIR.
	WorkDir string `mapstructure:"work_dir"`
}

// OutputConfig contains terminal output configuration.
type OutputConfig struct {
	// JSON switches every command to print the machine-readable handoff
	// payload instead of the styled summary. The --json flag sets the
	// same switch for a single invocation. Default: false.
	JSON bool `mapstructure:"json"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// The defaults assume a working-tree-scoped layout: state under
// ./.phasegate, definitions under ./.phasegate/workflows, a two-minute
// verification timeout, and styled human output. They work out of the box
// without any configuration file.
func DefaultConfig() *Config {
	return &Config{
		State: StateConfig{
			Dir:          ".phasegate",
			WorkflowsDir: ".phasegate/workflows",
		},
		Verify: VerifyConfig{
			Timeout: 2 * time.Minute,
			WorkDir: ".",
		},
		Output: OutputConfig{
			JSON: false,
		},
	}
}
