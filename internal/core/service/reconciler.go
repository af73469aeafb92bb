package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
	"github.com/olusolaa/vm-reconciler/pkg/compare"
)

type ReconcilerOptions struct {
	// AutoStopAfterCreate makes a desired stopped machine that does not exist
	// yet get created and stopped in the same pass. When false it is created
	// running and stopped by the next pass.
	AutoStopAfterCreate bool
}

// Reconciler drives individual machines towards their desired state using the
// inventory of one pass as its view of truth.
type Reconciler struct {
	client    ports.RemoteVMClient
	inventory *Inventory
	logger    ports.Logger
	opts      ReconcilerOptions
}

func NewReconciler(client ports.RemoteVMClient, inventory *Inventory, logger ports.Logger, opts ReconcilerOptions) *Reconciler {
	return &Reconciler{
		client:    client,
		inventory: inventory,
		logger:    logger,
		opts:      opts,
	}
}

// Decide returns the single action that moves observed towards desired.
func Decide(observed, desired domain.EnsureState) domain.Action {
	switch observed {
	case domain.EnsureRunning:
		switch desired {
		case domain.EnsureStopped:
			return domain.ActionStop
		case domain.EnsureAbsent:
			return domain.ActionDestroy
		}
	case domain.EnsureStopped:
		switch desired {
		case domain.EnsurePresent, domain.EnsureRunning:
			return domain.ActionStart
		case domain.EnsureAbsent:
			return domain.ActionDestroy
		}
	default:
		if desired != domain.EnsureAbsent {
			return domain.ActionCreate
		}
	}
	return domain.ActionNone
}

// Lookup resolves name against the pass inventory first and falls back to a
// single targeted remote lookup. A machine found remotely is added to the
// inventory; a miss registers nothing.
func (r *Reconciler) Lookup(ctx context.Context, name string) (*domain.MachineDescriptor, error) {
	if d, ok := r.inventory.Get(name); ok {
		if !d.Exists() {
			return nil, errors.ForResource(nil, errors.CodeResourceNotFound, name, "no virtual machine with this name")
		}
		return d, nil
	}

	r.logger.Debugf(ctx, "Looking up %s", name)
	rec, err := r.client.GetVirtualMachineByName(ctx, name)
	if err != nil {
		if errors.HasCode(err, errors.CodeResourceNotFound) {
			return nil, errors.ForResource(err, errors.CodeResourceNotFound, name, "no virtual machine with this name")
		}
		return nil, classifyLookupError(err, name)
	}
	if rec == nil {
		return nil, errors.ForResource(nil, errors.CodeResourceNotFound, name, "no virtual machine with this name")
	}

	desc, err := MapRecord(*rec)
	if err != nil {
		// Still manageable by handle; the image just cannot be compared.
		r.logger.Warnf(ctx, "Machine %s found remotely but not fully mapped: %v", name, err)
		desc = partialDescriptor(name, *rec)
	}
	r.inventory.Put(desc)
	d, _ := r.inventory.Get(name)
	return d, nil
}

// partialDescriptor keeps the handle and power state of a record that
// MapRecord rejected, so that start, stop and destroy can still act on it.
func partialDescriptor(name string, rec domain.MachineRecord) domain.MachineDescriptor {
	handle := rec
	return domain.MachineDescriptor{
		Name:     name,
		Ensure:   EnsureFromStatus(rec.Status),
		Location: rec.Location,
		Size:     rec.Size,
		Username: rec.AdminUsername,
		Hostname: rec.ComputerName,
		Handle:   &handle,
	}
}

// resolveHandle returns the remote record behind name. Descriptors registered
// without a handle, e.g. after a create that returned no record, are resolved
// with a targeted lookup.
func (r *Reconciler) resolveHandle(ctx context.Context, name string) (domain.MachineRecord, error) {
	d, err := r.Lookup(ctx, name)
	if err != nil {
		return domain.MachineRecord{}, err
	}
	if d.Handle != nil {
		return *d.Handle, nil
	}
	rec, err := r.client.GetVirtualMachineByName(ctx, name)
	if err != nil {
		return domain.MachineRecord{}, classifyLookupError(err, name)
	}
	if rec == nil {
		return domain.MachineRecord{}, errors.ForResource(nil, errors.CodeResourceNotFound, name, "no virtual machine with this name")
	}
	d.Handle = rec
	return *rec, nil
}

// Observe returns the current ensure state of name, absent when it does not
// exist remotely.
func (r *Reconciler) Observe(ctx context.Context, name string) (domain.EnsureState, error) {
	d, err := r.Lookup(ctx, name)
	if err != nil {
		if errors.Is(err, errors.CodeResourceNotFound) {
			return domain.EnsureAbsent, nil
		}
		return "", err
	}
	return d.Ensure, nil
}

// Exists reports the local view only and never calls out.
func (r *Reconciler) Exists(name string) bool {
	d, ok := r.inventory.Get(name)
	return ok && d.Exists()
}

func (r *Reconciler) IsRunning(name string) bool {
	d, ok := r.inventory.Get(name)
	return ok && d.Ensure == domain.EnsureRunning
}

// Create issues one create call. No rollback is attempted on failure and
// nothing is registered locally.
func (r *Reconciler) Create(ctx context.Context, desired domain.DesiredResource) error {
	r.logger.Infof(ctx, "Creating %s", desired.Name)

	image, ok := domain.ParseImageReference(desired.Image)
	if !ok {
		return errors.ForResource(nil, errors.CodeCreationError, desired.Name,
			fmt.Sprintf("image %q is not of the form publisher:offer:sku:version", desired.Image))
	}

	params := domain.CreateParams{
		Name:     desired.Name,
		Image:    image,
		Location: desired.Location,
		Size:     desired.Size,
		User:     desired.User,
		Password: desired.Password,
	}
	rec, err := r.client.CreateVirtualMachine(ctx, params)
	if err != nil {
		return errors.ForResource(err, errors.CodeCreationError, desired.Name, "create rejected by platform")
	}

	desc := domain.MachineDescriptor{
		Name:     desired.Name,
		Image:    image.String(),
		Location: desired.Location,
		Size:     desired.Size,
		Username: desired.User,
	}
	if rec != nil {
		if mapped, mapErr := MapRecord(*rec); mapErr == nil {
			desc = mapped
		} else {
			desc.Handle = rec
		}
	}
	desc.Ensure = domain.EnsureRunning
	r.inventory.Put(desc)
	return nil
}

func (r *Reconciler) Destroy(ctx context.Context, name string) error {
	r.logger.Infof(ctx, "Deleting %s", name)
	handle, err := r.resolveHandle(ctx, name)
	if err != nil {
		return err
	}
	if err := r.client.DeleteVirtualMachine(ctx, handle); err != nil {
		return classifyMutationError(err, name, domain.ActionDestroy)
	}
	r.inventory.SetEnsure(name, domain.EnsureAbsent)
	return nil
}

func (r *Reconciler) Start(ctx context.Context, name string) error {
	r.logger.Infof(ctx, "Starting %s", name)
	handle, err := r.resolveHandle(ctx, name)
	if err != nil {
		return err
	}
	if err := r.client.StartVirtualMachine(ctx, handle); err != nil {
		return classifyMutationError(err, name, domain.ActionStart)
	}
	r.inventory.SetEnsure(name, domain.EnsureRunning)
	return nil
}

func (r *Reconciler) Stop(ctx context.Context, name string) error {
	r.logger.Infof(ctx, "Stopping %s", name)
	handle, err := r.resolveHandle(ctx, name)
	if err != nil {
		return err
	}
	if err := r.client.StopVirtualMachine(ctx, handle); err != nil {
		return classifyMutationError(err, name, domain.ActionStop)
	}
	r.inventory.SetEnsure(name, domain.EnsureStopped)
	return nil
}

// Plan reports what Apply would do without mutating anything. It may still
// perform a targeted read for names missing from the inventory.
func (r *Reconciler) Plan(ctx context.Context, desired domain.DesiredResource) (domain.ActionResult, error) {
	result, action, err := r.prepare(ctx, desired)
	if err != nil {
		return result, err
	}
	if action == domain.ActionNone {
		result.Status = domain.StatusNoop
		result.Final = result.Observed
		return result, nil
	}
	result.Actions = append(result.Actions, action)
	if action == domain.ActionCreate && desired.EffectiveEnsure() == domain.EnsureStopped && r.opts.AutoStopAfterCreate {
		result.Actions = append(result.Actions, domain.ActionStop)
	}
	result.Status = domain.StatusPlanned
	result.Final = plannedState(result.Actions)
	return result, nil
}

// Apply brings one machine in line with its desired state. Calling it again
// with the same desired state performs no further remote mutation.
func (r *Reconciler) Apply(ctx context.Context, desired domain.DesiredResource) (domain.ActionResult, error) {
	result, action, err := r.prepare(ctx, desired)
	if err != nil {
		return result, err
	}

	fail := func(err error) (domain.ActionResult, error) {
		result.Status = domain.StatusError
		result.Error = err
		result.Final = r.localState(desired.Name)
		return result, err
	}

	switch action {
	case domain.ActionNone:
		result.Status = domain.StatusNoop
		result.Final = result.Observed
		return result, nil
	case domain.ActionCreate:
		result.Actions = append(result.Actions, action)
		if err := r.Create(ctx, desired); err != nil {
			return fail(err)
		}
		if desired.EffectiveEnsure() == domain.EnsureStopped && r.opts.AutoStopAfterCreate {
			result.Actions = append(result.Actions, domain.ActionStop)
			if err := r.Stop(ctx, desired.Name); err != nil {
				return fail(err)
			}
		}
	case domain.ActionDestroy:
		result.Actions = append(result.Actions, action)
		if err := r.Destroy(ctx, desired.Name); err != nil {
			return fail(err)
		}
	case domain.ActionStart:
		result.Actions = append(result.Actions, action)
		if err := r.Start(ctx, desired.Name); err != nil {
			return fail(err)
		}
	case domain.ActionStop:
		result.Actions = append(result.Actions, action)
		if err := r.Stop(ctx, desired.Name); err != nil {
			return fail(err)
		}
	}

	result.Status = domain.StatusApplied
	result.Final = r.localState(desired.Name)
	return result, nil
}

func (r *Reconciler) prepare(ctx context.Context, desired domain.DesiredResource) (domain.ActionResult, domain.Action, error) {
	want := desired.EffectiveEnsure()
	result := domain.ActionResult{Name: desired.Name, Desired: want}

	observed, err := r.Observe(ctx, desired.Name)
	if err != nil {
		result.Status = domain.StatusError
		result.Error = err
		return result, domain.ActionNone, err
	}
	result.Observed = observed

	if observed.Exists() && want != domain.EnsureAbsent {
		if err := r.checkImmutable(desired); err != nil {
			result.Status = domain.StatusError
			result.Error = err
			result.Final = observed
			return result, domain.ActionNone, err
		}
	}
	return result, Decide(observed, want), nil
}

// plannedState is the state a machine ends in once actions have run.
func plannedState(actions []domain.Action) domain.EnsureState {
	switch actions[len(actions)-1] {
	case domain.ActionDestroy:
		return domain.EnsureAbsent
	case domain.ActionStop:
		return domain.EnsureStopped
	default:
		return domain.EnsureRunning
	}
}

func (r *Reconciler) checkImmutable(desired domain.DesiredResource) error {
	d, ok := r.inventory.Get(desired.Name)
	if !ok {
		return nil
	}
	want := compare.Immutable{Image: desired.Image, Location: desired.Location, Size: desired.Size}
	if d.Image == "" {
		// Live image unknown, e.g. a machine built from a managed image.
		want.Image = ""
	}
	fields, diff := compare.ImmutableDiff(
		want,
		compare.Immutable{Image: d.Image, Location: d.Location, Size: d.Size},
	)
	if len(fields) == 0 {
		return nil
	}
	appErr := errors.ForResource(nil, errors.CodeImmutableProperty, desired.Name,
		fmt.Sprintf("cannot change read-only properties of an existing machine: %s", strings.Join(fields, ", ")))
	appErr.InternalDetails = diff
	appErr.IsUserFacing = true
	appErr.SuggestedAction = "Destroy and recreate the machine, or align the manifest with the live values."
	return appErr
}

func (r *Reconciler) localState(name string) domain.EnsureState {
	if d, ok := r.inventory.Get(name); ok {
		return d.Ensure
	}
	return domain.EnsureAbsent
}

func classifyLookupError(err error, name string) error {
	if errors.HasCode(err, errors.CodePlatformAuthError) {
		return errors.ForResource(err, errors.CodePlatformAuthError, name, "targeted lookup failed")
	}
	return errors.ForResource(err, errors.CodePlatformAPIError, name, "targeted lookup failed")
}

// classifyMutationError keeps the kinds a platform adapter already decided on
// and files everything else as a platform API failure.
func classifyMutationError(err error, name string, action domain.Action) error {
	msg := fmt.Sprintf("%s failed", action)
	switch {
	case errors.HasCode(err, errors.CodeInvalidState):
		return errors.ForResource(err, errors.CodeInvalidState, name,
			fmt.Sprintf("machine is not in a state that allows %s", action))
	case errors.HasCode(err, errors.CodeResourceNotFound):
		return errors.ForResource(err, errors.CodeResourceNotFound, name, msg)
	case errors.HasCode(err, errors.CodePlatformAuthError):
		return errors.ForResource(err, errors.CodePlatformAuthError, name, msg)
	default:
		return errors.ForResource(err, errors.CodePlatformAPIError, name, msg)
	}
}
