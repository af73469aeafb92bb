package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/vm-reconciler/internal/adapters/manifest/yamlmanifest"
	"github.com/olusolaa/vm-reconciler/internal/config"
	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/core/service"
	"github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/internal/log"
	"github.com/olusolaa/vm-reconciler/mocks"
)

func viperFrom(t *testing.T, yamlConfig string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yamlConfig)))
	return v
}

func TestLoadConfig(t *testing.T) {
	v := viperFrom(t, `
settings:
  log_level: debug
  reporter: json
  continue_on_error: true
  auto_stop_after_create: true
  api_rps: 5
platform:
  type: aws_ec2
  aws:
    region: eu-west-1
    security_group_ids: [sg-1, sg-2]
    filters:
      tag:team: web
manifest:
  path: machines.yaml
  format: yaml
  var_files: [prod.vars.hcl]
`)
	v.Set("target", "web-1, web-2,web-1")

	cfg, err := LoadConfig(context.Background(), v)
	require.NoError(t, err)

	assert.Equal(t, log.LevelDebug, cfg.Settings.LogLevel)
	assert.Equal(t, log.FormatText, cfg.Settings.LogFormat)
	assert.Equal(t, "json", cfg.Settings.ReporterType)
	assert.True(t, cfg.Settings.ContinueOnError)
	assert.True(t, cfg.Settings.AutoStopAfterCreate)
	assert.Equal(t, 5, cfg.Settings.APIRPS)
	require.NotNil(t, cfg.Platform.AWS)
	assert.Nil(t, cfg.Platform.Azure)
	assert.Equal(t, "eu-west-1", cfg.Platform.AWS.Region)
	assert.Equal(t, []string{"sg-1", "sg-2"}, cfg.Platform.AWS.SecurityGroupIDs)
	assert.Equal(t, map[string]string{"tag:team": "web"}, cfg.Platform.AWS.Filters)
	assert.Equal(t, []string{"prod.vars.hcl"}, cfg.Manifest.VarFiles)
	assert.Equal(t, []string{"web-1", "web-2"}, cfg.Manifest.Targets)
}

func TestLoadConfig_ValidationError(t *testing.T) {
	v := viperFrom(t, `
platform:
  type: azure_arm
manifest:
  format: toml
`)
	_, err := LoadConfig(context.Background(), v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConfigValidation))

	msg, suggestion, ok := errors.GetUserFacingMessage(err)
	assert.True(t, ok)
	assert.Contains(t, msg, "Config.Platform.Azure")
	assert.Contains(t, msg, "Config.Manifest.Format")
	assert.NotEmpty(t, suggestion)
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"aws_ec2", "azure_arm"}, registry.ClientAPIs())
	assert.Equal(t, []string{"hcl", "tfstate", "yaml"}, registry.ManifestFormats())

	_, err = registry.NewClient(context.Background(), "azure_arm", log.NewDiscard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConfigValidation))
}

func testRegistry(t *testing.T, client ports.RemoteVMClient) *service.ComponentRegistry {
	t.Helper()
	registry := service.NewComponentRegistry()
	require.NoError(t, registry.RegisterClient("mock", func(ctx context.Context, logger ports.Logger) (ports.RemoteVMClient, error) {
		return client, nil
	}))
	require.NoError(t, registry.RegisterManifestFormat(yamlmanifest.Format, func(path string, logger ports.Logger) (ports.ManifestSource, error) {
		return yamlmanifest.New(path, logger), nil
	}))
	return registry
}

func running(name string) domain.MachineRecord {
	return domain.MachineRecord{
		ID:       "/vms/" + name,
		Name:     name,
		Location: "westeurope",
		Status:   "Running",
		Image:    &domain.ImageReference{Publisher: "Canonical", Offer: "UbuntuServer", SKU: "18.04-LTS", Version: "latest"},
		Size:     "Standard_B1s",
	}
}

func TestApplication_Run(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "machines.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
machines:
  - name: web-1
    ensure: stopped
  - name: web-2
    ensure: absent
`), 0o600))

	cfg := config.DefaultConfig()
	cfg.Platform.Type = "mock"
	cfg.Settings.ReporterType = "json"
	cfg.Settings.MetricsFile = filepath.Join(dir, "vmr.prom")
	cfg.Manifest = config.ManifestConfig{Path: manifestPath, Format: yamlmanifest.Format, Targets: []string{"web-1"}}

	client := new(mocks.MockRemoteVMClient)
	web1 := running("web-1")
	client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{web1, running("web-2")}, nil).Once()
	client.On("StopVirtualMachine", mock.Anything, web1).Return(nil).Once()

	application, err := buildWithRegistry(context.Background(), cfg, testRegistry(t, client), log.NewDiscard())
	require.NoError(t, err)

	result, err := application.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "web-1", result.Results[0].Name)
	assert.Equal(t, domain.StatusApplied, result.Results[0].Status)
	assert.False(t, application.Provider.IsRunning("web-1"))
	assert.True(t, application.Provider.IsPresent("web-2"), "untargeted machines are left alone")

	raw, err := os.ReadFile(cfg.Settings.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `vmr_passes_total{outcome="success"} 1`)
	client.AssertExpectations(t)
}

func TestApplication_List(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Platform.Type = "mock"
	cfg.Manifest.Format = yamlmanifest.Format

	client := new(mocks.MockRemoteVMClient)
	client.On("ListAllVirtualMachines", mock.Anything).Return([]domain.MachineRecord{running("web-1")}, nil).Once()

	application, err := buildWithRegistry(context.Background(), cfg, testRegistry(t, client), log.NewDiscard())
	require.NoError(t, err)

	reporter := new(mocks.MockReporter)
	reporter.On("ReportInventory", mock.Anything, mock.MatchedBy(func(ms []domain.MachineDescriptor) bool {
		return len(ms) == 1 && ms[0].Name == "web-1" && ms[0].Ensure == domain.EnsureRunning
	})).Return(nil).Once()
	application.Reporter = reporter

	require.NoError(t, application.List(context.Background()))
	reporter.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestBuild_UnknownPlatform(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Platform.Type = "gcp"
	_, err := buildWithRegistry(context.Background(), cfg, testRegistry(t, new(mocks.MockRemoteVMClient)), log.NewDiscard())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConfigValidation))
}
