// Package tfstate adopts the virtual machines recorded in a Terraform state
// as the desired set, so machines Terraform created can be kept running,
// stopped or removed by the reconciler.
package tfstate

import (
	"context"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
)

const Format = "tfstate"

type Source struct {
	parser *stateParser
	logger ports.Logger
}

func New(path string, logger ports.Logger) *Source {
	logger = logger.WithFields(map[string]any{"component": "tfstate_manifest", "manifest_path": path})
	return &Source{
		parser: newStateParser(path, logger),
		logger: logger,
	}
}

func (s *Source) Type() string {
	return Format
}

func (s *Source) Load(ctx context.Context) ([]domain.DesiredResource, error) {
	resources, err := s.parser.resources(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.DesiredResource
	for _, r := range resources {
		if !isMachineType(r.Type) {
			continue
		}
		res, err := mapResource(r)
		if err != nil {
			s.logger.Warnf(ctx, "Skipping %s: %v", r.Address, err)
			continue
		}
		out = append(out, res)
	}
	s.logger.Debugf(ctx, "Adopted %d machines from %d managed resources", len(out), len(resources))
	return out, nil
}
