package app

import (
	"context"
	"strings"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
)

// parseTargets splits a comma separated --target value into machine names.
func parseTargets(override string) []string {
	if override == "" {
		return nil
	}
	var targets []string
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(override, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	return targets
}

// targetedManifest narrows a manifest to the named machines, keeping
// declaration order.
type targetedManifest struct {
	inner   ports.ManifestSource
	targets map[string]struct{}
	logger  ports.Logger
}

func newTargetedManifest(inner ports.ManifestSource, targets []string, logger ports.Logger) *targetedManifest {
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}
	return &targetedManifest{inner: inner, targets: set, logger: logger}
}

func (m *targetedManifest) Type() string {
	return m.inner.Type()
}

func (m *targetedManifest) Load(ctx context.Context) ([]domain.DesiredResource, error) {
	all, err := m.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	found := make(map[string]struct{}, len(m.targets))
	out := make([]domain.DesiredResource, 0, len(m.targets))
	for _, res := range all {
		if _, ok := m.targets[res.Name]; ok {
			out = append(out, res)
			found[res.Name] = struct{}{}
		}
	}
	for name := range m.targets {
		if _, ok := found[name]; !ok {
			m.logger.Warnf(ctx, "Ignoring target %q: not declared in the manifest", name)
		}
	}
	m.logger.Debugf(ctx, "Targeting %d of %d declared machines", len(out), len(all))
	return out, nil
}
