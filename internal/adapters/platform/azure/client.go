package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/limiter"
	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
)

const APIVersion = "azure_arm"

const (
	opList   = "list"
	opGet    = "get"
	opCreate = "create"
	opDelete = "delete"
	opStart  = "start"
	opStop   = "stop"
)

type Config struct {
	SubscriptionID string `mapstructure:"subscription_id" yaml:"subscription_id" validate:"required"`
	ResourceGroup  string `mapstructure:"resource_group" yaml:"resource_group" validate:"required"`
	// Location is used for machines declared without one.
	Location string `mapstructure:"location" yaml:"location"`
	SubnetID string `mapstructure:"subnet_id" yaml:"subnet_id"`
	RPS      int    `mapstructure:"-" yaml:"-"`
}

// Client implements ports.RemoteVMClient against Azure Resource Manager.
type Client struct {
	vms     VirtualMachinesAPI
	limiter *limiter.Limiter
	logger  ports.Logger
	cfg     Config
}

// NewClient authenticates with the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewClient(cfg Config, logger ports.Logger) (*Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodePlatformAuthError,
			"failed to obtain Azure credentials",
			"Log in with 'az login' or set AZURE_CLIENT_ID, AZURE_TENANT_ID and AZURE_CLIENT_SECRET.")
	}
	vmClient, err := armcompute.NewVirtualMachinesClient(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigValidation, "failed to create Azure compute client")
	}
	return NewClientWithAPI(&sdkVirtualMachines{client: vmClient}, cfg, logger), nil
}

func NewClientWithAPI(vms VirtualMachinesAPI, cfg Config, logger ports.Logger) *Client {
	logger = logger.WithFields(map[string]any{"api": APIVersion, "resource_group": cfg.ResourceGroup})
	return &Client{
		vms:     vms,
		limiter: limiter.New(cfg.RPS, logger),
		logger:  logger,
		cfg:     cfg,
	}
}

func (c *Client) APIVersion() string {
	return APIVersion
}

// ListAllVirtualMachines lists every machine in the subscription with its
// run-time status.
func (c *Client) ListAllVirtualMachines(ctx context.Context) ([]domain.MachineRecord, error) {
	pager := c.vms.NewListAllPager(&armcompute.VirtualMachinesClientListAllOptions{StatusOnly: to.Ptr("true")})

	var records []domain.MachineRecord
	pageNum := 0
	for pager.More() {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		pageNum++
		c.logger.Debugf(ctx, "Fetching virtual machines page %d", pageNum)
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, handleARMError(ctx, opList, "*", err)
		}
		for _, vm := range page.Value {
			if vm == nil {
				continue
			}
			records = append(records, MapVirtualMachine(vm))
		}
	}
	c.logger.Debugf(ctx, "Finished paginating virtual machines, found %d total.", len(records))
	return records, nil
}

// GetVirtualMachineByName reads one machine with its instance view from the
// configured resource group.
func (c *Client) GetVirtualMachineByName(ctx context.Context, name string) (*domain.MachineRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.vms.Get(ctx, c.cfg.ResourceGroup, name, &armcompute.VirtualMachinesClientGetOptions{
		Expand: to.Ptr(armcompute.InstanceViewTypesInstanceView),
	})
	if err != nil {
		mapped := handleARMError(ctx, opGet, name, err)
		if errors.Is(mapped, errors.CodeResourceNotFound) {
			return nil, nil
		}
		return nil, mapped
	}
	rec := MapVirtualMachine(&resp.VirtualMachine)
	return &rec, nil
}

func (c *Client) CreateVirtualMachine(ctx context.Context, params domain.CreateParams) (*domain.MachineRecord, error) {
	location := params.Location
	if location == "" {
		location = c.cfg.Location
	}
	if location == "" {
		return nil, errors.ForResource(nil, errors.CodeCreationError, params.Name, "a location is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vm, err := c.vms.CreateOrUpdate(ctx, c.cfg.ResourceGroup, params.Name, buildVirtualMachine(params, location, c.cfg.SubnetID))
	if err != nil {
		return nil, handleARMError(ctx, opCreate, params.Name, err)
	}
	rec := MapVirtualMachine(&vm)
	if rec.Name == "" {
		rec.Name = params.Name
	}
	return &rec, nil
}

func (c *Client) DeleteVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	return c.mutate(ctx, opDelete, handle, c.vms.Delete)
}

func (c *Client) StartVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	return c.mutate(ctx, opStart, handle, c.vms.Start)
}

// StopVirtualMachine deallocates the machine so it stops being billed for
// compute.
func (c *Client) StopVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	return c.mutate(ctx, opStop, handle, c.vms.Deallocate)
}

func (c *Client) mutate(ctx context.Context, operation string, handle domain.MachineRecord, call func(context.Context, string, string) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	rg := c.resourceGroupOf(handle)
	c.logger.Debugf(ctx, "Issuing %s for %s in %s", operation, handle.Name, rg)
	if err := call(ctx, rg, handle.Name); err != nil {
		return handleARMError(ctx, operation, handle.Name, err)
	}
	return nil
}

// resourceGroupOf reads the resource group from the machine's ARM id so
// machines listed across the subscription are addressed correctly.
func (c *Client) resourceGroupOf(handle domain.MachineRecord) string {
	if handle.ID != "" {
		if id, err := arm.ParseResourceID(handle.ID); err == nil && id.ResourceGroupName != "" {
			return id.ResourceGroupName
		}
	}
	return c.cfg.ResourceGroup
}
