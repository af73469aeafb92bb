package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
)

type EngineOptions struct {
	// ContinueOnError keeps reconciling the remaining resources after one
	// fails. Otherwise the rest of the pass is skipped.
	ContinueOnError bool
	// DryRun plans every resource without mutating anything.
	DryRun bool
}

// ReconciliationEngine runs one reconciliation pass: load the manifest,
// prefetch the inventory, then reconcile every declared machine in order.
type ReconciliationEngine struct {
	provider *Provider
	manifest ports.ManifestSource
	reporter ports.Reporter
	metrics  ports.MetricsRecorder
	logger   ports.Logger
	opts     EngineOptions
	validate *validator.Validate
}

func NewReconciliationEngine(
	provider *Provider,
	manifest ports.ManifestSource,
	reporter ports.Reporter,
	metrics ports.MetricsRecorder,
	logger ports.Logger,
	opts EngineOptions,
) (*ReconciliationEngine, error) {
	if provider == nil {
		return nil, errors.New(errors.CodeConfigValidation, "provider cannot be nil")
	}
	if manifest == nil {
		return nil, errors.New(errors.CodeConfigValidation, "manifest source cannot be nil")
	}
	if reporter == nil {
		return nil, errors.New(errors.CodeConfigValidation, "reporter cannot be nil")
	}

	return &ReconciliationEngine{
		provider: provider,
		manifest: manifest,
		reporter: reporter,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (e *ReconciliationEngine) Run(ctx context.Context) (domain.PassResult, error) {
	result := domain.PassResult{
		PassID:     uuid.NewString(),
		APIVersion: e.provider.APIVersion(),
		DryRun:     e.opts.DryRun,
	}
	log := e.logger.WithFields(map[string]any{"pass_id": result.PassID})
	log.Infof(ctx, "Starting reconciliation pass using %s manifest and %s API (dry run: %t)",
		e.manifest.Type(), result.APIVersion, e.opts.DryRun)

	// The manifest and the remote inventory are independent reads.
	var desired []domain.DesiredResource
	var snapshot []domain.MachineDescriptor
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := e.manifest.Load(gctx)
		if err != nil {
			return errors.Wrap(err, errors.CodeManifestReadError, "failed loading manifest")
		}
		desired = loaded
		return nil
	})
	g.Go(func() error {
		machines, err := e.provider.ListExistingResources(gctx)
		if err != nil {
			return err
		}
		snapshot = machines
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Errorf(ctx, err, "Reconciliation pass aborted before any change")
		e.observePass(true)
		return result, err
	}

	if err := e.validateDesired(ctx, desired); err != nil {
		log.Errorf(ctx, err, "Manifest validation failed")
		e.observePass(true)
		return result, err
	}

	e.provider.UseInventory(ctx, snapshot)
	log.Debugf(ctx, "Reconciling %d declared machines against %d existing", len(desired), len(snapshot))

	var firstErr, cancelErr error
	for i, res := range desired {
		if cancelErr = ctx.Err(); cancelErr != nil {
			log.Warnf(ctx, "Reconciliation pass interrupted, skipping %d machines", len(desired)-i)
			result.Results = appendSkipped(result.Results, desired[i:])
			break
		}
		if firstErr != nil && !e.opts.ContinueOnError {
			result.Results = appendSkipped(result.Results, desired[i:])
			break
		}

		rlog := log.WithFields(map[string]any{"resource": res.Name})
		var ar domain.ActionResult
		var err error
		if e.opts.DryRun {
			ar, err = e.provider.PlanDesiredState(ctx, res)
		} else {
			ar, err = e.provider.ApplyDesiredState(ctx, res)
		}
		result.Results = append(result.Results, ar)
		e.observeActions(ar)

		if err != nil {
			rlog.Errorf(ctx, err, "Reconciliation failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		rlog.Debugf(ctx, "Observed %s, desired %s, actions %v", ar.Observed, ar.Desired, ar.Actions)
	}

	failed := result.Failed()
	e.observePass(failed > 0 || cancelErr != nil)

	reportCtx := ctx
	if cancelErr != nil {
		// An interrupted pass still reports what it got done.
		reportCtx = context.WithoutCancel(ctx)
	}
	if reportErr := e.reporter.Report(reportCtx, result); reportErr != nil {
		log.Errorf(ctx, reportErr, "Failed to report pass result")
		if firstErr == nil && cancelErr == nil {
			return result, errors.Wrap(reportErr, errors.CodeInternal, "failed to generate pass report")
		}
	}

	if cancelErr != nil {
		return result, cancelErr
	}

	if firstErr != nil {
		if !e.opts.ContinueOnError {
			return result, firstErr
		}
		return result, errors.WrapUserFacing(firstErr, errors.CodeReconcileFailed,
			fmt.Sprintf("%d of %d machines failed to reconcile", failed, len(desired)),
			"See the report and logs for the failing machines.")
	}

	log.Infof(ctx, "Reconciliation pass finished, %d machines processed", len(result.Results))
	return result, nil
}

func appendSkipped(results []domain.ActionResult, rest []domain.DesiredResource) []domain.ActionResult {
	for _, res := range rest {
		results = append(results, domain.ActionResult{
			Name:    res.Name,
			Desired: res.EffectiveEnsure(),
			Status:  domain.StatusSkipped,
		})
	}
	return results
}

func (e *ReconciliationEngine) validateDesired(ctx context.Context, desired []domain.DesiredResource) error {
	var problems []string
	seen := make(map[string]struct{}, len(desired))
	for i, res := range desired {
		if err := e.validate.StructCtx(ctx, res); err != nil {
			var verrs validator.ValidationErrors
			if ok := asValidationErrors(err, &verrs); ok {
				for _, fe := range verrs {
					problems = append(problems, fmt.Sprintf("machine #%d (%q): field '%s' failed on '%s' (value: '%v')",
						i+1, res.Name, fe.Field(), fe.Tag(), fe.Value()))
				}
			} else {
				problems = append(problems, err.Error())
			}
		}
		if _, dup := seen[res.Name]; dup {
			problems = append(problems, fmt.Sprintf("machine %q is declared more than once", res.Name))
		}
		seen[res.Name] = struct{}{}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.NewUserFacing(errors.CodeManifestInvalid,
		"Manifest validation failed:\n - "+strings.Join(problems, "\n - "),
		"Fix the listed machines in the manifest.")
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func (e *ReconciliationEngine) observeActions(ar domain.ActionResult) {
	if e.metrics == nil {
		return
	}
	if len(ar.Actions) == 0 {
		e.metrics.ObserveAction(domain.ActionNone, ar.Status)
		return
	}
	for _, a := range ar.Actions {
		e.metrics.ObserveAction(a, ar.Status)
	}
}

func (e *ReconciliationEngine) observePass(failed bool) {
	if e.metrics != nil {
		e.metrics.ObservePass(failed)
	}
}
