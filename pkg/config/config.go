// Package config loads harness configuration from a YAML file, LAZYLINK_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "lazylink"
	// EnvPrefix prefixes environment overrides, e.g. LAZYLINK_STOP_ON_ERROR.
	EnvPrefix = "LAZYLINK"
)

// Engine kinds.
const (
	EngineBrowser  = "browser"
	EngineCommand  = "command"
	EngineScenario = "scenario"
)

// Config is the harness configuration.
type Config struct {
	StopOnError            bool             `mapstructure:"stop_on_error" json:"stop_on_error" jsonschema:"description=Report and stop the run on engine errors"`
	PauseOnError           bool             `mapstructure:"pause_on_error" json:"pause_on_error" jsonschema:"description=Report and pause playback on engine errors"`
	ScriptsFolder          string           `mapstructure:"scripts_folder" json:"scripts_folder" jsonschema:"description=Root for script references that are neither absolute nor ./-relative"`
	Busy                   BusyConfig       `mapstructure:"busy" json:"busy"`
	PageTimeoutWaitSeconds float64          `mapstructure:"page_timeout_wait_seconds" json:"page_timeout_wait_seconds" jsonschema:"minimum=0"`
	MaxDepth               int              `mapstructure:"max_depth" json:"max_depth" jsonschema:"minimum=1"`
	TraceDir               string           `mapstructure:"trace_dir" json:"trace_dir"`
	LogLevel               string           `mapstructure:"log_level" json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Engine                 EngineConfig     `mapstructure:"engine" json:"engine"`
	Governance             GovernanceConfig `mapstructure:"governance" json:"governance"`
}

// BusyConfig describes the on-page busy indicator polled after each line.
type BusyConfig struct {
	ElementID   string  `mapstructure:"element_id" json:"element_id"`
	Value       string  `mapstructure:"value" json:"value"`
	PollSeconds float64 `mapstructure:"poll_seconds" json:"poll_seconds" jsonschema:"minimum=0"`
}

// GovernanceConfig restricts what a run may dispatch and what its trace
// and engine process may see.
type GovernanceConfig struct {
	AllowedCommands []string        `mapstructure:"allowed_commands" json:"allowed_commands,omitempty" jsonschema:"description=Macro command words a run may dispatch; empty allows all"`
	DeniedCommands  []string        `mapstructure:"denied_commands" json:"denied_commands,omitempty"`
	DenyEnvVars     []string        `mapstructure:"deny_env_vars" json:"deny_env_vars,omitempty" jsonschema:"description=Glob patterns of variables withheld from the command engine"`
	Redact          []RedactionRule `mapstructure:"redact" json:"redact,omitempty"`
}

// RedactionRule rewrites trace text matching Pattern.
type RedactionRule struct {
	Pattern string `mapstructure:"pattern" json:"pattern"`
	Replace string `mapstructure:"replace" json:"replace"`
}

// EngineConfig selects and configures the playback engine.
type EngineConfig struct {
	Kind           string   `mapstructure:"kind" json:"kind" jsonschema:"enum=browser,enum=command,enum=scenario"`
	Command        []string `mapstructure:"command" json:"command,omitempty"`
	TimeoutSeconds float64  `mapstructure:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Scenario       string   `mapstructure:"scenario" json:"scenario,omitempty"`
	Headless       bool     `mapstructure:"headless" json:"headless"`
	StartURL       string   `mapstructure:"start_url" json:"start_url,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Busy: BusyConfig{
			ElementID:   "ajaxStatus",
			Value:       "on",
			PollSeconds: 0.3,
		},
		PageTimeoutWaitSeconds: 3,
		MaxDepth:               16,
		TraceDir:               ".lazylink/runs",
		LogLevel:               "info",
		Engine: EngineConfig{
			Kind:     EngineBrowser,
			Headless: true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("stop_on_error", d.StopOnError)
	v.SetDefault("pause_on_error", d.PauseOnError)
	v.SetDefault("scripts_folder", d.ScriptsFolder)
	v.SetDefault("busy.element_id", d.Busy.ElementID)
	v.SetDefault("busy.value", d.Busy.Value)
	v.SetDefault("busy.poll_seconds", d.Busy.PollSeconds)
	v.SetDefault("page_timeout_wait_seconds", d.PageTimeoutWaitSeconds)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("trace_dir", d.TraceDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("engine.kind", d.Engine.Kind)
	v.SetDefault("engine.headless", d.Engine.Headless)
	// Keys without a meaningful default still need registering so that
	// AutomaticEnv overrides reach Unmarshal.
	v.SetDefault("engine.command", []string{})
	v.SetDefault("engine.timeout_seconds", d.Engine.TimeoutSeconds)
	v.SetDefault("engine.scenario", d.Engine.Scenario)
	v.SetDefault("engine.start_url", d.Engine.StartURL)
	v.SetDefault("governance.allowed_commands", []string{})
	v.SetDefault("governance.denied_commands", []string{})
	v.SetDefault("governance.deny_env_vars", []string{})
}

// Load reads configuration. An explicit path must exist; without one,
// lazylink.yaml is looked up in the working directory and is optional.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option combinations.
func (c Config) Validate() error {
	switch c.Engine.Kind {
	case EngineBrowser, EngineScenario:
	case EngineCommand:
		if len(c.Engine.Command) == 0 {
			return errors.New("engine.command is required for the command engine")
		}
	default:
		return fmt.Errorf("unknown engine kind %q", c.Engine.Kind)
	}
	if c.Engine.Kind == EngineScenario && c.Engine.Scenario == "" {
		return errors.New("engine.scenario is required for the scenario engine")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.Busy.PollSeconds <= 0 {
		return fmt.Errorf("busy.poll_seconds must be positive, got %v", c.Busy.PollSeconds)
	}
	return nil
}
