package tfstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/internal/log"
)

const rawStateV4 = `{
  "version": 4,
  "terraform_version": "1.7.5",
  "resources": [
    {
      "mode": "managed",
      "type": "azurerm_linux_virtual_machine",
      "name": "web",
      "instances": [{
        "attributes": {
          "name": "web-1",
          "location": "westeurope",
          "size": "Standard_B1s",
          "admin_username": "azureuser",
          "source_image_reference": [
            {"publisher": "Canonical", "offer": "UbuntuServer", "sku": "18.04-LTS", "version": "latest"}
          ]
        }
      }]
    },
    {
      "module": "module.legacy",
      "mode": "managed",
      "type": "azurerm_virtual_machine",
      "name": "db",
      "instances": [{
        "attributes": {
          "name": "db-1",
          "location": "westeurope",
          "vm_size": "Standard_D2s_v3",
          "storage_image_reference": [
            {"publisher": "Canonical", "offer": "UbuntuServer", "sku": "18.04-LTS", "version": "latest"}
          ],
          "os_profile": [{"admin_username": "dbadmin", "computer_name": "db-1"}]
        }
      }]
    },
    {
      "mode": "managed",
      "type": "azurerm_resource_group",
      "name": "rg",
      "instances": [{"attributes": {"name": "rg-web"}}]
    },
    {
      "mode": "data",
      "type": "azurerm_linux_virtual_machine",
      "name": "lookup",
      "instances": [{"attributes": {"name": "other"}}]
    },
    {
      "mode": "managed",
      "type": "azurerm_linux_virtual_machine",
      "name": "nameless",
      "instances": [{"attributes": {"location": "westeurope"}}]
    }
  ]
}`

const showJSON = `{
  "format_version": "1.0",
  "terraform_version": "1.7.5",
  "values": {
    "root_module": {
      "resources": [
        {
          "address": "aws_instance.api",
          "mode": "managed",
          "type": "aws_instance",
          "name": "api",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "schema_version": 1,
          "values": {
            "ami": "ami-0abc",
            "instance_type": "t3.micro",
            "availability_zone": "eu-west-1a",
            "instance_state": "stopped",
            "tags": {
              "Name": "api-1",
              "vmr:image-publisher": "Canonical",
              "vmr:image-offer": "UbuntuServer",
              "vmr:image-sku": "18.04-LTS",
              "vmr:admin-user": "ubuntu"
            }
          }
        }
      ],
      "child_modules": [
        {
          "address": "module.workers",
          "resources": [
            {
              "address": "module.workers.aws_instance.worker",
              "mode": "managed",
              "type": "aws_instance",
              "name": "worker",
              "provider_name": "registry.terraform.io/hashicorp/aws",
              "schema_version": 1,
              "values": {"instance_type": "t3.small", "instance_state": "running"}
            }
          ]
        }
      ]
    }
  }
}`

func writeState(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terraform.tfstate")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_RawState(t *testing.T) {
	got, err := New(writeState(t, rawStateV4), log.NewDiscard()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.DesiredResource{
		Name:     "web-1",
		Ensure:   domain.EnsurePresent,
		Image:    "Canonical:UbuntuServer:18.04-LTS:latest",
		Location: "westeurope",
		Size:     "Standard_B1s",
		User:     "azureuser",
	}, got[0])
	assert.Equal(t, "db-1", got[1].Name)
	assert.Equal(t, "Standard_D2s_v3", got[1].Size)
	assert.Equal(t, "dbadmin", got[1].User)
}

func TestLoad_ShowJSON(t *testing.T) {
	got, err := New(writeState(t, showJSON), log.NewDiscard()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.DesiredResource{
		Name:     "api-1",
		Ensure:   domain.EnsureStopped,
		Image:    "Canonical:UbuntuServer:18.04-LTS:ami-0abc",
		Location: "eu-west-1a",
		Size:     "t3.micro",
		User:     "ubuntu",
	}, got[0])

	// Without a Name tag the Terraform resource name is used.
	assert.Equal(t, "worker", got[1].Name)
	assert.Equal(t, domain.EnsureRunning, got[1].Ensure)
	assert.Empty(t, got[1].Image)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.Code
	}{
		{name: "empty", content: "  \n", code: errors.CodeManifestParseError},
		{name: "invalid json", content: "{", code: errors.CodeManifestParseError},
		{name: "old version", content: `{"version": 2}`, code: errors.CodeManifestParseError},
		{name: "unsupported show format", content: `{"format_version": "9.0"}`, code: errors.CodeManifestParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(writeState(t, tt.content), log.NewDiscard()).Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}

	_, err := New(filepath.Join(t.TempDir(), "missing.tfstate"), log.NewDiscard()).Load(context.Background())
	assert.True(t, errors.Is(err, errors.CodeManifestReadError))
}

func TestStateParser_Caches(t *testing.T) {
	path := writeState(t, rawStateV4)
	p := newStateParser(path, log.NewDiscard())

	first, err := p.resources(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	second, err := p.resources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseRawState_CountedInstances(t *testing.T) {
	got, err := parseRawState([]byte(`{"version": 4, "resources": [{
		"mode": "managed", "type": "aws_instance", "name": "node",
		"instances": [{"attributes": {}}, {"attributes": {}}]
	}]}`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "aws_instance.node[0]", got[0].Address)
	assert.Equal(t, "aws_instance.node[1]", got[1].Address)
}
