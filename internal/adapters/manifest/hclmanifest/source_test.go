package hclmanifest

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

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newSource(path string, varFiles []string, environ ...string) *Source {
	s := New(path, varFiles, log.NewDiscard())
	s.environ = func() []string { return environ }
	return s
}

func TestLoad_LiteralMachines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "machines.hcl", `
machine "web-1" {
  ensure   = "running"
  image    = "Canonical:UbuntuServer:18.04-LTS:latest"
  location = "westeurope"
  size     = "Standard_B1s"
  user     = "azureuser"
  password = "s3cret!"
}

machine "old" {
  ensure = "absent"
}

machine "db-1" {
  image = "Canonical:UbuntuServer:18.04-LTS:latest"
}
`)

	got, err := newSource(path, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.DesiredResource{
		Name:     "web-1",
		Ensure:   domain.EnsureRunning,
		Image:    "Canonical:UbuntuServer:18.04-LTS:latest",
		Location: "westeurope",
		Size:     "Standard_B1s",
		User:     "azureuser",
		Password: "s3cret!",
	}, got[0])
	assert.Equal(t, "old", got[1].Name)
	assert.Equal(t, domain.EnsureAbsent, got[1].Ensure)
	assert.Equal(t, domain.EnsurePresent, got[2].EffectiveEnsure())
}

func TestLoad_UnknownAttribute(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", `
machine "vm" {
  flavour = "large"
}
`)

	_, err := newSource(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestParseError))
}

func TestLoad_VariablesAndFunctions(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", `
variable "location" {
  type    = string
  default = "westeurope"
}

variable "prefix" {
  type = string
}

variable "admin_password" {
  type      = string
  sensitive = true
}

machine "vm" {
  location = var.location
  user     = lower("AzureUser")
  password = var.admin_password
  size     = format("%s-size", var.prefix)
}
`)
	varsFile := writeFile(t, dir, "prod.vars.hcl", `
prefix = "file"
`)

	got, err := newSource(path, []string{varsFile}, "VMR_VAR_admin_password=pw", "OTHER=ignored").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "westeurope", got[0].Location)
	assert.Equal(t, "azureuser", got[0].User)
	assert.Equal(t, "pw", got[0].Password)
	assert.Equal(t, "file-size", got[0].Size)
}

func TestLoad_EnvironmentOverridesVarsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", `
variable "location" {
  default = "westeurope"
}

machine "vm" {
  location = var.location
}
`)
	varsFile := writeFile(t, dir, "vars.hcl", `location = "northeurope"`)

	got, err := newSource(path, []string{varsFile}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "northeurope", got[0].Location)

	got, err = newSource(path, []string{varsFile}, "VMR_VAR_location=eastus").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eastus", got[0].Location)
}

func TestLoad_MissingVariable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", `
variable "size" {}

machine "vm" {
  size = var.size
}
`)

	_, err := newSource(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestParseError))
	assert.Contains(t, err.Error(), "No value for required variable")
}

func TestLoad_InvalidEnsure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", `
machine "vm" {
  ensure = "paused"
}
`)

	_, err := newSource(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestParseError))
	assert.Contains(t, err.Error(), "Invalid ensure value")
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.hcl", `machine "second" {}`)
	writeFile(t, dir, "a.hcl", `
variable "image" {
  default = "Canonical:UbuntuServer:18.04-LTS:latest"
}
machine "first" {
  image = var.image
}
`)
	writeFile(t, dir, "c.hcl.json", `{"machine": {"third": {"ensure": "stopped"}}}`)
	writeFile(t, dir, "notes.txt", `not a manifest`)

	got, err := newSource(dir, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "Canonical:UbuntuServer:18.04-LTS:latest", got[0].Image)
	assert.Equal(t, "second", got[1].Name)
	assert.Equal(t, "third", got[2].Name)
	assert.Equal(t, domain.EnsureStopped, got[2].Ensure)
}

func TestLoad_ReadErrors(t *testing.T) {
	_, err := newSource(filepath.Join(t.TempDir(), "missing.hcl"), nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestReadError))

	_, err = newSource(t.TempDir(), nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestReadError))
}

func TestLoad_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", `machine "vm" {`)

	_, err := newSource(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeManifestParseError))

	var diagErr *DiagnosticsError
	require.ErrorAs(t, err, &diagErr)
	assert.Equal(t, "parsing", diagErr.Operation)
}

func TestType(t *testing.T) {
	assert.Equal(t, "hcl", New("x.hcl", nil, log.NewDiscard()).Type())
}
