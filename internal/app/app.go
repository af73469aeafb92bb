package app

import (
	"context"

	"github.com/olusolaa/vm-reconciler/internal/config"
	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/core/service"
	"github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/internal/metrics"
)

// Application holds the wired components of one CLI invocation.
type Application struct {
	Engine   ports.ReconciliationEngine
	Provider *service.Provider
	Reporter ports.Reporter
	Metrics  *metrics.Recorder
	Logger   ports.Logger
	Config   *config.Config
}

// Run executes one reconciliation pass and writes the metrics file when one
// is configured.
func (a *Application) Run(ctx context.Context) (domain.PassResult, error) {
	a.Logger.Infof(ctx, "Starting reconciliation...")

	result, err := a.Engine.Run(ctx)
	a.flushMetrics(ctx)

	if err != nil {
		a.Logger.Errorf(ctx, err, "Reconciliation failed")
		return result, err
	}

	a.Logger.Infof(ctx, "Reconciliation completed successfully")
	return result, nil
}

// List reports every machine currently known to the platform.
func (a *Application) List(ctx context.Context) error {
	machines, err := a.Provider.ListExistingResources(ctx)
	if err != nil {
		a.Logger.Errorf(ctx, err, "Listing machines failed")
		return err
	}
	return a.Reporter.ReportInventory(ctx, machines)
}

func (a *Application) flushMetrics(ctx context.Context) {
	if a.Config == nil || a.Config.Settings.MetricsFile == "" || a.Metrics == nil {
		return
	}
	if err := a.Metrics.WriteToTextfile(a.Config.Settings.MetricsFile); err != nil {
		a.Logger.Errorf(ctx, errors.Wrap(err, errors.CodeInternal, "failed to write metrics file"),
			"Metrics not written to %s", a.Config.Settings.MetricsFile)
		return
	}
	a.Logger.Debugf(ctx, "Metrics written to %s", a.Config.Settings.MetricsFile)
}
