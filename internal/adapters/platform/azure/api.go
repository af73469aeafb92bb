package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
)

//go:generate mockery --name VirtualMachinesAPI --output ./mocks --outpkg mocks --case underscore

// VirtualMachinesAPI is the subset of the ARM virtual machines client the
// adapter drives. Long running operations are awaited by the implementation.
type VirtualMachinesAPI interface {
	NewListAllPager(options *armcompute.VirtualMachinesClientListAllOptions) *runtime.Pager[armcompute.VirtualMachinesClientListAllResponse]
	Get(ctx context.Context, resourceGroup, name string, options *armcompute.VirtualMachinesClientGetOptions) (armcompute.VirtualMachinesClientGetResponse, error)
	CreateOrUpdate(ctx context.Context, resourceGroup, name string, vm armcompute.VirtualMachine) (armcompute.VirtualMachine, error)
	Delete(ctx context.Context, resourceGroup, name string) error
	Start(ctx context.Context, resourceGroup, name string) error
	Deallocate(ctx context.Context, resourceGroup, name string) error
}

// sdkVirtualMachines adapts *armcompute.VirtualMachinesClient, polling each
// long running operation until it completes.
type sdkVirtualMachines struct {
	client *armcompute.VirtualMachinesClient
}

func (s *sdkVirtualMachines) NewListAllPager(options *armcompute.VirtualMachinesClientListAllOptions) *runtime.Pager[armcompute.VirtualMachinesClientListAllResponse] {
	return s.client.NewListAllPager(options)
}

func (s *sdkVirtualMachines) Get(ctx context.Context, resourceGroup, name string, options *armcompute.VirtualMachinesClientGetOptions) (armcompute.VirtualMachinesClientGetResponse, error) {
	return s.client.Get(ctx, resourceGroup, name, options)
}

func (s *sdkVirtualMachines) CreateOrUpdate(ctx context.Context, resourceGroup, name string, vm armcompute.VirtualMachine) (armcompute.VirtualMachine, error) {
	poller, err := s.client.BeginCreateOrUpdate(ctx, resourceGroup, name, vm, nil)
	if err != nil {
		return armcompute.VirtualMachine{}, err
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return armcompute.VirtualMachine{}, err
	}
	return resp.VirtualMachine, nil
}

func (s *sdkVirtualMachines) Delete(ctx context.Context, resourceGroup, name string) error {
	poller, err := s.client.BeginDelete(ctx, resourceGroup, name, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (s *sdkVirtualMachines) Start(ctx context.Context, resourceGroup, name string) error {
	poller, err := s.client.BeginStart(ctx, resourceGroup, name, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (s *sdkVirtualMachines) Deallocate(ctx context.Context, resourceGroup, name string) error {
	poller, err := s.client.BeginDeallocate(ctx, resourceGroup, name, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}
