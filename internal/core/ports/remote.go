package ports

import (
	"context"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

// RemoteVMClient is the capability a control-plane API must offer. There is
// one implementation per API; retries are the implementation's concern.
//
//go:generate mockery --name RemoteVMClient --output ../../../mocks --outpkg mocks --case underscore
type RemoteVMClient interface {
	APIVersion() string
	ListAllVirtualMachines(ctx context.Context) ([]domain.MachineRecord, error)
	// GetVirtualMachineByName returns (nil, nil) when no machine has the name.
	GetVirtualMachineByName(ctx context.Context, name string) (*domain.MachineRecord, error)
	CreateVirtualMachine(ctx context.Context, params domain.CreateParams) (*domain.MachineRecord, error)
	DeleteVirtualMachine(ctx context.Context, handle domain.MachineRecord) error
	StartVirtualMachine(ctx context.Context, handle domain.MachineRecord) error
	StopVirtualMachine(ctx context.Context, handle domain.MachineRecord) error
}
