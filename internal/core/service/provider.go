package service

import (
	"context"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
)

// Provider is the surface offered to a declarative front end: list what
// exists, prefetch it into a pass inventory, then apply desired states one by
// one and query the resulting local view.
type Provider struct {
	client     ports.RemoteVMClient
	fetcher    *Fetcher
	logger     ports.Logger
	opts       ReconcilerOptions
	reconciler *Reconciler
}

func NewProvider(client ports.RemoteVMClient, logger ports.Logger, opts ReconcilerOptions) *Provider {
	return &Provider{
		client:  client,
		fetcher: NewFetcher(client, logger),
		logger:  logger,
		opts:    opts,
	}
}

func (p *Provider) APIVersion() string {
	return p.client.APIVersion()
}

// ListExistingResources returns a fresh snapshot of every machine.
func (p *Provider) ListExistingResources(ctx context.Context) ([]domain.MachineDescriptor, error) {
	return p.fetcher.FetchAll(ctx)
}

// Prefetch lists every machine once and starts a new pass with it.
func (p *Provider) Prefetch(ctx context.Context) error {
	descriptors, err := p.ListExistingResources(ctx)
	if err != nil {
		return err
	}
	p.UseInventory(ctx, descriptors)
	return nil
}

// UseInventory starts a new pass over an already fetched snapshot.
func (p *Provider) UseInventory(ctx context.Context, descriptors []domain.MachineDescriptor) {
	inv := NewInventory(ctx, descriptors, p.logger)
	p.reconciler = NewReconciler(p.client, inv, p.logger.WithFields(map[string]any{"component": "reconciler"}), p.opts)
	p.logger.Debugf(ctx, "Pass inventory holds %d machines", inv.Len())
}

// ApplyDesiredState reconciles one resource. Without a prefetch every
// resource is resolved with a targeted lookup.
func (p *Provider) ApplyDesiredState(ctx context.Context, desired domain.DesiredResource) (domain.ActionResult, error) {
	return p.pass(ctx).Apply(ctx, desired)
}

func (p *Provider) PlanDesiredState(ctx context.Context, desired domain.DesiredResource) (domain.ActionResult, error) {
	return p.pass(ctx).Plan(ctx, desired)
}

func (p *Provider) IsPresent(name string) bool {
	return p.reconciler != nil && p.reconciler.Exists(name)
}

func (p *Provider) IsRunning(name string) bool {
	return p.reconciler != nil && p.reconciler.IsRunning(name)
}

// Machines returns the local view of the current pass.
func (p *Provider) Machines() []domain.MachineDescriptor {
	if p.reconciler == nil {
		return nil
	}
	return p.reconciler.inventory.Descriptors()
}

func (p *Provider) pass(ctx context.Context) *Reconciler {
	if p.reconciler == nil {
		p.UseInventory(ctx, nil)
	}
	return p.reconciler
}
