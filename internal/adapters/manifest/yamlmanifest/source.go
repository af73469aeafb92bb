// Package yamlmanifest reads desired machines from a YAML document of the form
//
//	machines:
//	  - name: web-1
//	    ensure: running
//	    image: Canonical:UbuntuServer:18.04-LTS:latest
package yamlmanifest

import (
	"context"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
)

const Format = "yaml"

type document struct {
	Machines []map[string]any `yaml:"machines"`
}

type Source struct {
	path   string
	logger ports.Logger
}

func New(path string, logger ports.Logger) *Source {
	return &Source{
		path:   path,
		logger: logger.WithFields(map[string]any{"component": "yaml_manifest", "manifest_path": path}),
	}
}

func (s *Source) Type() string {
	return Format
}

func (s *Source) Load(ctx context.Context) ([]domain.DesiredResource, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeManifestReadError,
			fmt.Sprintf("cannot read manifest %s", s.path), "Check the manifest path.")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.decode(raw)
}

func (s *Source) decode(raw []byte) ([]domain.DesiredResource, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeManifestParseError,
			fmt.Sprintf("manifest %s is not valid YAML", s.path), "Fix the YAML syntax.")
	}

	resources := make([]domain.DesiredResource, 0, len(doc.Machines))
	for i, entry := range doc.Machines {
		var res domain.DesiredResource
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
			ErrorUnused:      true,
			WeaklyTypedInput: true,
			Result:           &res,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to build manifest decoder")
		}
		if err := decoder.Decode(entry); err != nil {
			return nil, errors.WrapUserFacing(err, errors.CodeManifestParseError,
				fmt.Sprintf("manifest %s: machine #%d is invalid", s.path, i+1),
				"Machine entries accept name, ensure, image, location, size, user and password.")
		}
		if res.Ensure == "" {
			res.Ensure = domain.EnsurePresent
		}
		resources = append(resources, res)
	}

	s.logger.Debugf(context.Background(), "Loaded %d machines", len(resources))
	return resources, nil
}
