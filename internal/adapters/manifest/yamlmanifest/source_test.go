package yamlmanifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/vm-reconciler/internal/adapters/manifest/hclmanifest"
	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/internal/log"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "machines.yaml", `
machines:
  - name: web-1
    ensure: Running
    image: Canonical:UbuntuServer:18.04-LTS:latest
    location: westeurope
    size: Standard_B1s
    user: azureuser
    password: 12345
  - name: old
    ensure: absent
  - name: db-1
`)

	got, err := New(path, log.NewDiscard()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.DesiredResource{
		Name:     "web-1",
		Ensure:   domain.EnsureRunning,
		Image:    "Canonical:UbuntuServer:18.04-LTS:latest",
		Location: "westeurope",
		Size:     "Standard_B1s",
		User:     "azureuser",
		Password: "12345",
	}, got[0])
	assert.Equal(t, domain.EnsureAbsent, got[1].Ensure)
	assert.Equal(t, domain.EnsurePresent, got[2].Ensure)
}

func TestLoad_EmptyDocument(t *testing.T) {
	got, err := New(writeFile(t, "empty.yaml", "machines: []\n"), log.NewDiscard()).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.Code
	}{
		{name: "syntax", content: "machines: [", code: errors.CodeManifestParseError},
		{name: "bad ensure", content: "machines:\n  - name: vm\n    ensure: paused\n", code: errors.CodeManifestParseError},
		{name: "unknown key", content: "machines:\n  - name: vm\n    flavour: large\n", code: errors.CodeManifestParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(writeFile(t, "m.yaml", tt.content), log.NewDiscard()).Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}

	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"), log.NewDiscard()).Load(context.Background())
	assert.True(t, errors.Is(err, errors.CodeManifestReadError))
}

// The same machines written in either format load to the same desired list.
func TestLoad_MatchesHCL(t *testing.T) {
	yamlPath := writeFile(t, "m.yaml", `
machines:
  - name: web-1
    ensure: stopped
    image: Canonical:UbuntuServer:18.04-LTS:latest
    location: westeurope
    size: Standard_B1s
    user: azureuser
    password: pw
  - name: web-2
`)
	hclPath := writeFile(t, "m.hcl", `
machine "web-1" {
  ensure   = "stopped"
  image    = "Canonical:UbuntuServer:18.04-LTS:latest"
  location = "westeurope"
  size     = "Standard_B1s"
  user     = "azureuser"
  password = "pw"
}

machine "web-2" {}
`)

	fromYAML, err := New(yamlPath, log.NewDiscard()).Load(context.Background())
	require.NoError(t, err)
	fromHCL, err := hclmanifest.New(hclPath, nil, log.NewDiscard()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fromHCL, fromYAML)
}
