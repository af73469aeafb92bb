package tfstate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	tfjson "github.com/hashicorp/terraform-json"
	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// rawState is the on-disk terraform.tfstate layout (versions 3 to 5).
	rawState struct {
		Version          int           `json:"version"`
		TerraformVersion string        `json:"terraform_version"`
		Resources        []rawResource `json:"resources"`
	}

	rawResource struct {
		Module    string        `json:"module,omitempty"`
		Mode      string        `json:"mode"`
		Type      string        `json:"type"`
		Name      string        `json:"name"`
		Instances []rawInstance `json:"instances"`
	}

	rawInstance struct {
		Attributes map[string]any `json:"attributes"`
	}
)

// stateResource is one managed resource instance from either state layout.
type stateResource struct {
	Address    string
	Type       string
	Name       string
	Attributes map[string]any
}

type stateParser struct {
	filePath string
	cache    []stateResource
	parseErr error
	parsed   bool
	mutex    sync.Mutex
	logger   ports.Logger
}

func newStateParser(path string, logger ports.Logger) *stateParser {
	return &stateParser{
		filePath: path,
		logger:   logger.WithFields(map[string]any{"component": "tfstate_parser", "file_path": path}),
	}
}

// resources reads the state once and returns every managed resource
// instance. Both the raw state file and `terraform show -json` output are
// accepted.
func (sp *stateParser) resources(ctx context.Context) ([]stateResource, error) {
	sp.mutex.Lock()
	defer sp.mutex.Unlock()

	if sp.parsed {
		return sp.cache, sp.parseErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sp.cache, sp.parseErr = sp.parse(ctx)
	sp.parsed = true
	return sp.cache, sp.parseErr
}

func (sp *stateParser) parse(ctx context.Context) ([]stateResource, error) {
	raw, err := os.ReadFile(sp.filePath)
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeManifestReadError,
			fmt.Sprintf("cannot read state file %s", sp.filePath), "Check the manifest path.")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.NewUserFacing(errors.CodeManifestParseError, "state file is empty", "")
	}

	var probe struct {
		FormatVersion string `json:"format_version"`
	}
	if err := jsonAPI.Unmarshal(raw, &probe); err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeManifestParseError, "invalid JSON in state", "")
	}

	if probe.FormatVersion != "" {
		sp.logger.Debugf(ctx, "Reading terraform show -json output (format %s)", probe.FormatVersion)
		return parseShowJSON(raw)
	}
	return parseRawState(raw)
}

func parseShowJSON(raw []byte) ([]stateResource, error) {
	var state tfjson.State
	if err := state.UnmarshalJSON(raw); err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeManifestParseError,
			"unsupported terraform show -json output", "Regenerate it with a supported Terraform version.")
	}
	if state.Values == nil || state.Values.RootModule == nil {
		return nil, nil
	}

	var out []stateResource
	var walk func(m *tfjson.StateModule)
	walk = func(m *tfjson.StateModule) {
		for _, r := range m.Resources {
			if r == nil || r.Mode != tfjson.ManagedResourceMode {
				continue
			}
			out = append(out, stateResource{
				Address:    r.Address,
				Type:       r.Type,
				Name:       r.Name,
				Attributes: r.AttributeValues,
			})
		}
		for _, child := range m.ChildModules {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(state.Values.RootModule)
	return out, nil
}

func parseRawState(raw []byte) ([]stateResource, error) {
	var state rawState
	if err := jsonAPI.Unmarshal(raw, &state); err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeManifestParseError, "invalid JSON in state", "")
	}
	if state.Version < 3 {
		return nil, errors.NewUserFacing(errors.CodeManifestParseError,
			fmt.Sprintf("unsupported state version %d (only v3 to v5 supported)", state.Version),
			"Upgrade or downgrade Terraform if needed and regenerate state.")
	}

	var out []stateResource
	for i := range state.Resources {
		r := &state.Resources[i]
		if r.Mode != "managed" {
			continue
		}
		for idx, inst := range r.Instances {
			address := buildResourceAddress(r)
			if len(r.Instances) > 1 {
				address = fmt.Sprintf("%s[%d]", address, idx)
			}
			out = append(out, stateResource{
				Address:    address,
				Type:       r.Type,
				Name:       r.Name,
				Attributes: inst.Attributes,
			})
		}
	}
	return out, nil
}

func buildResourceAddress(r *rawResource) string {
	if r.Module != "" {
		return r.Module + "." + r.Type + "." + r.Name
	}
	return r.Type + "." + r.Name
}
