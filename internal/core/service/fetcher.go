package service

import (
	"context"
	"fmt"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
)

// Remote status strings that map to a stopped machine. Everything else,
// including transitional and failed states, counts as running.
const (
	StatusStoppedDeallocated = domain.RemoteStatusStoppedDeallocated
	StatusStopped            = domain.RemoteStatusStopped
)

// Fetcher retrieves the full machine inventory visible to a client.
type Fetcher struct {
	client ports.RemoteVMClient
	logger ports.Logger
}

func NewFetcher(client ports.RemoteVMClient, logger ports.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger.WithFields(map[string]any{"component": "fetcher", "api": client.APIVersion()}),
	}
}

// FetchAll lists every machine and maps it to a descriptor. A listing error
// fails the whole batch; malformed records are skipped.
func (f *Fetcher) FetchAll(ctx context.Context) ([]domain.MachineDescriptor, error) {
	f.logger.Debugf(ctx, "Listing all virtual machines")
	records, err := f.client.ListAllVirtualMachines(ctx)
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeRemoteFetchError,
			"failed to list virtual machines",
			"Check platform credentials and connectivity; no changes were made.")
	}

	descriptors := make([]domain.MachineDescriptor, 0, len(records))
	for _, rec := range records {
		desc, mapErr := MapRecord(rec)
		if mapErr != nil {
			f.logger.Debugf(ctx, "Ignoring %q due to invalid or incomplete response: %v", rec.Name, mapErr)
			continue
		}
		descriptors = append(descriptors, desc)
	}
	f.logger.Debugf(ctx, "Fetched %d machines (%d records skipped)", len(descriptors), len(records)-len(descriptors))
	return descriptors, nil
}

// MapRecord normalizes one remote record into a descriptor.
func MapRecord(rec domain.MachineRecord) (domain.MachineDescriptor, error) {
	if rec.Name == "" {
		return domain.MachineDescriptor{}, errors.New(errors.CodeMappingError, "record has no name")
	}
	if rec.Image == nil || !rec.Image.Complete() {
		return domain.MachineDescriptor{}, errors.New(errors.CodeMappingError,
			fmt.Sprintf("record %q has an incomplete image reference", rec.Name))
	}

	handle := rec
	return domain.MachineDescriptor{
		Name:     rec.Name,
		Image:    rec.Image.String(),
		Ensure:   EnsureFromStatus(rec.Status),
		Location: rec.Location,
		Size:     rec.Size,
		Username: rec.AdminUsername,
		Hostname: rec.ComputerName,
		Handle:   &handle,
	}, nil
}

func EnsureFromStatus(status string) domain.EnsureState {
	switch status {
	case StatusStoppedDeallocated, StatusStopped:
		return domain.EnsureStopped
	default:
		return domain.EnsureRunning
	}
}
