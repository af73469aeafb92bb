package azure

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

const powerStatePrefix = "PowerState/"

var powerStates = map[string]string{
	"deallocated":  domain.RemoteStatusStoppedDeallocated,
	"stopped":      domain.RemoteStatusStopped,
	"running":      domain.RemoteStatusRunning,
	"starting":     "Starting",
	"stopping":     "Stopping",
	"deallocating": "Deallocating",
}

// MapVirtualMachine flattens an ARM virtual machine into a machine record.
// Missing nested objects leave the matching fields empty.
func MapVirtualMachine(vm *armcompute.VirtualMachine) domain.MachineRecord {
	rec := domain.MachineRecord{
		ID:       deref(vm.ID),
		Name:     deref(vm.Name),
		Location: deref(vm.Location),
		Native:   vm,
	}

	props := vm.Properties
	if props == nil {
		return rec
	}
	rec.Status = Status(props.InstanceView, props.ProvisioningState)

	if props.StorageProfile != nil && props.StorageProfile.ImageReference != nil {
		ref := props.StorageProfile.ImageReference
		rec.Image = &domain.ImageReference{
			Publisher: deref(ref.Publisher),
			Offer:     deref(ref.Offer),
			SKU:       deref(ref.SKU),
			Version:   deref(ref.Version),
		}
	}
	if props.OSProfile != nil {
		rec.AdminUsername = deref(props.OSProfile.AdminUsername)
		rec.ComputerName = deref(props.OSProfile.ComputerName)
	}
	if props.HardwareProfile != nil && props.HardwareProfile.VMSize != nil {
		rec.Size = string(*props.HardwareProfile.VMSize)
	}
	return rec
}

// Status derives the status string from the PowerState code of an instance
// view, falling back to the provisioning state when there is none.
func Status(view *armcompute.VirtualMachineInstanceView, provisioningState *string) string {
	if view != nil {
		for _, s := range view.Statuses {
			if s == nil || s.Code == nil || !strings.HasPrefix(*s.Code, powerStatePrefix) {
				continue
			}
			code := strings.TrimPrefix(*s.Code, powerStatePrefix)
			if status, ok := powerStates[code]; ok {
				return status
			}
			return code
		}
	}
	return deref(provisioningState)
}

// buildVirtualMachine renders the create request. The machine gets a single
// NIC on subnetID, created and deleted together with it.
func buildVirtualMachine(params domain.CreateParams, location, subnetID string) armcompute.VirtualMachine {
	vm := armcompute.VirtualMachine{
		Location: to.Ptr(location),
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(params.Size)),
			},
			StorageProfile: &armcompute.StorageProfile{
				ImageReference: &armcompute.ImageReference{
					Publisher: to.Ptr(params.Image.Publisher),
					Offer:     to.Ptr(params.Image.Offer),
					SKU:       to.Ptr(params.Image.SKU),
					Version:   to.Ptr(params.Image.Version),
				},
				OSDisk: &armcompute.OSDisk{
					CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
					DeleteOption: to.Ptr(armcompute.DiskDeleteOptionTypesDelete),
				},
			},
			OSProfile: &armcompute.OSProfile{
				ComputerName:  to.Ptr(params.Name),
				AdminUsername: to.Ptr(params.User),
				AdminPassword: to.Ptr(params.Password),
			},
		},
	}

	if subnetID != "" {
		vm.Properties.NetworkProfile = &armcompute.NetworkProfile{
			NetworkAPIVersion: to.Ptr(armcompute.NetworkAPIVersionTwoThousandTwenty1101),
			NetworkInterfaceConfigurations: []*armcompute.VirtualMachineNetworkInterfaceConfiguration{{
				Name: to.Ptr(params.Name + "-nic"),
				Properties: &armcompute.VirtualMachineNetworkInterfaceConfigurationProperties{
					Primary:      to.Ptr(true),
					DeleteOption: to.Ptr(armcompute.DeleteOptionsDelete),
					IPConfigurations: []*armcompute.VirtualMachineNetworkInterfaceIPConfiguration{{
						Name: to.Ptr(params.Name + "-ipconfig"),
						Properties: &armcompute.VirtualMachineNetworkInterfaceIPConfigurationProperties{
							Primary: to.Ptr(true),
							Subnet:  &armcompute.SubResource{ID: to.Ptr(subnetID)},
						},
					}},
				},
			}},
		}
	}
	return vm
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
