package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/olusolaa/vm-reconciler/internal/adapters/manifest/hclmanifest"
	"github.com/olusolaa/vm-reconciler/internal/adapters/manifest/tfstate"
	"github.com/olusolaa/vm-reconciler/internal/adapters/manifest/yamlmanifest"
	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/aws/ec2"
	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/azure"
	"github.com/olusolaa/vm-reconciler/internal/config"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/core/service"
	"github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/internal/log"
	"github.com/olusolaa/vm-reconciler/internal/metrics"
	jsonreport "github.com/olusolaa/vm-reconciler/internal/reporting/json"
	"github.com/olusolaa/vm-reconciler/internal/reporting/text"
)

// LoadConfig decodes and validates the configuration held by v.
func LoadConfig(ctx context.Context, v *viper.Viper) (*config.Config, error) {
	cfg := config.DefaultConfig()
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigParseError, "failed to unmarshal configuration")
	}

	if targets := parseTargets(v.GetString("target")); len(targets) > 0 {
		cfg.Manifest.Targets = targets
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(ctx, cfg); err != nil {
		var errorDetails strings.Builder
		errorDetails.WriteString("Configuration validation failed:")
		var validationErrors validator.ValidationErrors
		if !asValidationErrors(err, &validationErrors) {
			return nil, errors.Wrap(err, errors.CodeConfigValidation, "configuration validation failed")
		}
		for _, fe := range validationErrors {
			errorDetails.WriteString(fmt.Sprintf("\n - Field '%s': Failed on '%s' validation (value: '%v')", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return nil, errors.NewUserFacing(errors.CodeConfigValidation, errorDetails.String(), "Please check your configuration file or flags.")
	}
	return cfg, nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// NewRegistry registers every supported control-plane API and manifest
// format, bound to the platform and manifest sections of cfg.
func NewRegistry(cfg *config.Config) (*service.ComponentRegistry, error) {
	registry := service.NewComponentRegistry()
	rps := cfg.Settings.APIRPS

	err := registry.RegisterClient(azure.APIVersion, func(ctx context.Context, logger ports.Logger) (ports.RemoteVMClient, error) {
		if cfg.Platform.Azure == nil {
			return nil, errors.NewUserFacing(errors.CodeConfigValidation, "platform.azure section is missing", "Configure subscription_id and resource_group under platform.azure.")
		}
		azCfg := *cfg.Platform.Azure
		azCfg.RPS = rps
		return azure.NewClient(azCfg, logger)
	})
	if err != nil {
		return nil, err
	}

	err = registry.RegisterClient(ec2.APIVersion, func(ctx context.Context, logger ports.Logger) (ports.RemoteVMClient, error) {
		awsCfg := ec2.Config{}
		if cfg.Platform.AWS != nil {
			awsCfg = *cfg.Platform.AWS
		}
		awsCfg.RPS = rps
		return ec2.NewClient(ctx, awsCfg, logger)
	})
	if err != nil {
		return nil, err
	}

	err = registry.RegisterManifestFormat(hclmanifest.Format, func(path string, logger ports.Logger) (ports.ManifestSource, error) {
		return hclmanifest.New(path, cfg.Manifest.VarFiles, logger), nil
	})
	if err != nil {
		return nil, err
	}

	err = registry.RegisterManifestFormat(yamlmanifest.Format, func(path string, logger ports.Logger) (ports.ManifestSource, error) {
		return yamlmanifest.New(path, logger), nil
	})
	if err != nil {
		return nil, err
	}

	err = registry.RegisterManifestFormat(tfstate.Format, func(path string, logger ports.Logger) (ports.ManifestSource, error) {
		return tfstate.New(path, logger), nil
	})
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func newReporter(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.Reporter, error) {
	switch cfg.Settings.ReporterType {
	case text.ReporterTypeText:
		reportLog := logger.WithFields(map[string]any{"component": "reporter", "type": text.ReporterTypeText})
		textCfg := text.Config{}
		if cfg.Settings.Reporter.Text != nil {
			textCfg = *cfg.Settings.Reporter.Text
		}
		reporter, err := text.NewReporter(textCfg, reportLog)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize Text reporter")
		}
		reportLog.Debugf(ctx, "Using Text reporter (Color: %t)", !textCfg.NoColor)
		return reporter, nil
	case jsonreport.ReporterTypeJSON:
		reportLog := logger.WithFields(map[string]any{"component": "reporter", "type": jsonreport.ReporterTypeJSON})
		reporter, err := jsonreport.NewReporter(jsonreport.Config{}, reportLog)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize JSON reporter")
		}
		return reporter, nil
	default:
		return nil, errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("unsupported reporter type: %s", cfg.Settings.ReporterType), "Supported: text, json")
	}
}

// BuildApplicationFromViper wires config, logger, remote client, manifest
// source, reporter and metrics into an Application.
func BuildApplicationFromViper(ctx context.Context, v *viper.Viper) (*Application, error) {
	cfg, err := LoadConfig(ctx, v)
	if err != nil {
		return nil, err
	}

	logger, err := log.NewLogger(log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		return nil, errors.Wrap(err, errors.CodeInternal, "logger initialization failed")
	}
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using configuration file: %s", v.ConfigFileUsed())
	} else {
		logger.Debugf(ctx, "No configuration file found, using defaults/env/flags.")
	}

	return Build(ctx, cfg, logger)
}

// Build wires an Application from an already validated configuration.
func Build(ctx context.Context, cfg *config.Config, logger ports.Logger) (*Application, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return buildWithRegistry(ctx, cfg, registry, logger)
}

func buildWithRegistry(ctx context.Context, cfg *config.Config, registry *service.ComponentRegistry, logger ports.Logger) (*Application, error) {
	clientLog := logger.WithFields(map[string]any{"component": "client", "api": cfg.Platform.Type})
	client, err := registry.NewClient(ctx, cfg.Platform.Type, clientLog)
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "Using %s platform API", client.APIVersion())

	manifestLog := logger.WithFields(map[string]any{"component": "manifest", "format": cfg.Manifest.Format})
	manifest, err := registry.NewManifestSource(cfg.Manifest.Format, cfg.Manifest.Path, manifestLog)
	if err != nil {
		return nil, err
	}
	if len(cfg.Manifest.Targets) > 0 {
		manifest = newTargetedManifest(manifest, cfg.Manifest.Targets, manifestLog)
	}

	reporter, err := newReporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	provider := service.NewProvider(client, logger.WithFields(map[string]any{"component": "provider"}),
		service.ReconcilerOptions{AutoStopAfterCreate: cfg.Settings.AutoStopAfterCreate})

	engine, err := service.NewReconciliationEngine(provider, manifest, reporter, recorder,
		logger.WithFields(map[string]any{"component": "engine"}),
		service.EngineOptions{ContinueOnError: cfg.Settings.ContinueOnError, DryRun: cfg.Settings.DryRun})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to initialize reconciliation engine")
	}

	logger.Debugf(ctx, "Application bootstrap complete")
	return &Application{
		Engine:   engine,
		Provider: provider,
		Reporter: reporter,
		Metrics:  recorder,
		Logger:   logger,
		Config:   cfg,
	}, nil
}
