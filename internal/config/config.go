package config

import (
	"github.com/olusolaa/vm-reconciler/internal/adapters/manifest/hclmanifest"
	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/aws/ec2"
	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/azure"
	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/limiter"
	"github.com/olusolaa/vm-reconciler/internal/log"
	"github.com/olusolaa/vm-reconciler/internal/reporting/text"
)

type Config struct {
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Platform PlatformConfig `mapstructure:"platform" yaml:"platform"`
	Manifest ManifestConfig `mapstructure:"manifest" yaml:"manifest"`
}

type SettingsConfig struct {
	LogLevel            log.Level       `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat           log.Format      `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
	ReporterType        string          `mapstructure:"reporter" yaml:"reporter" validate:"oneof=text json"`
	Reporter            ReporterConfigs `mapstructure:"reporter_config" yaml:"reporter_config"`
	ContinueOnError     bool            `mapstructure:"continue_on_error" yaml:"continue_on_error"`
	AutoStopAfterCreate bool            `mapstructure:"auto_stop_after_create" yaml:"auto_stop_after_create"`
	DryRun              bool            `mapstructure:"dry_run" yaml:"dry_run"`
	MetricsFile         string          `mapstructure:"metrics_file" yaml:"metrics_file"`
	APIRPS              int             `mapstructure:"api_rps" yaml:"api_rps" validate:"gte=0,lte=100"`
}

type ReporterConfigs struct {
	Text *text.Config `mapstructure:"text" yaml:"text,omitempty"`
}

// PlatformConfig selects the control-plane API by Type; only the matching
// sub-config is read.
type PlatformConfig struct {
	Type  string        `mapstructure:"type" yaml:"type" validate:"required,oneof=azure_arm aws_ec2"`
	Azure *azure.Config `mapstructure:"azure" yaml:"azure,omitempty" validate:"required_if=Type azure_arm"`
	AWS   *ec2.Config   `mapstructure:"aws" yaml:"aws,omitempty" validate:"required_if=Type aws_ec2"`
}

type ManifestConfig struct {
	Path     string   `mapstructure:"path" yaml:"path" validate:"required"`
	Format   string   `mapstructure:"format" yaml:"format" validate:"oneof=hcl yaml tfstate"`
	VarFiles []string `mapstructure:"var_files" yaml:"var_files"`
	// Targets limits a pass to the named machines.
	Targets []string `mapstructure:"targets" yaml:"targets"`
}

func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			LogLevel:     log.LevelInfo,
			LogFormat:    log.FormatText,
			ReporterType: text.ReporterTypeText,
			Reporter: ReporterConfigs{
				Text: &text.Config{NoColor: false},
			},
			APIRPS: limiter.DefaultRPS,
		},
		Platform: PlatformConfig{
			Type: azure.APIVersion,
		},
		Manifest: ManifestConfig{
			Path:   "machines.hcl",
			Format: hclmanifest.Format,
		},
	}
}
