package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
)

type ClientFactory func(ctx context.Context, logger ports.Logger) (ports.RemoteVMClient, error)

type ManifestFactory func(path string, logger ports.Logger) (ports.ManifestSource, error)

// ComponentRegistry maps configuration names to the factories that build
// remote clients (one per control-plane API) and manifest sources.
type ComponentRegistry struct {
	mu        sync.RWMutex
	clients   map[string]ClientFactory
	manifests map[string]ManifestFactory
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		clients:   make(map[string]ClientFactory),
		manifests: make(map[string]ManifestFactory),
	}
}

func (r *ComponentRegistry) RegisterClient(api string, factory ClientFactory) error {
	if factory == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil client factory")
	}
	if api == "" {
		return errors.New(errors.CodeInternal, "client API name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[api]; exists {
		return errors.New(errors.CodeInternal, fmt.Sprintf("client for API '%s' already registered", api))
	}
	r.clients[api] = factory
	return nil
}

func (r *ComponentRegistry) NewClient(ctx context.Context, api string, logger ports.Logger) (ports.RemoteVMClient, error) {
	r.mu.RLock()
	factory, exists := r.clients[api]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("platform '%s' not supported", api),
			fmt.Sprintf("Supported platforms: %v", r.ClientAPIs()))
	}
	return factory(ctx, logger)
}

func (r *ComponentRegistry) ClientAPIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apis := make([]string, 0, len(r.clients))
	for api := range r.clients {
		apis = append(apis, api)
	}
	sort.Strings(apis)
	return apis
}

func (r *ComponentRegistry) RegisterManifestFormat(format string, factory ManifestFactory) error {
	if factory == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil manifest factory")
	}
	if format == "" {
		return errors.New(errors.CodeInternal, "manifest format cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.manifests[format]; exists {
		return errors.New(errors.CodeInternal, fmt.Sprintf("manifest format '%s' already registered", format))
	}
	r.manifests[format] = factory
	return nil
}

func (r *ComponentRegistry) NewManifestSource(format, path string, logger ports.Logger) (ports.ManifestSource, error) {
	r.mu.RLock()
	factory, exists := r.manifests[format]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.NewUserFacing(errors.CodeConfigValidation,
			fmt.Sprintf("manifest format '%s' not supported", format),
			fmt.Sprintf("Supported formats: %v", r.ManifestFormats()))
	}
	return factory(path, logger)
}

func (r *ComponentRegistry) ManifestFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]string, 0, len(r.manifests))
	for format := range r.manifests {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}
