package tfstate

import (
	"fmt"

	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/aws/ec2"
	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

type resourceMapper func(r stateResource) (domain.DesiredResource, error)

// Terraform resource types that describe a virtual machine.
var machineTypes = map[string]resourceMapper{
	"aws_instance":                    mapAWSInstance,
	"azurerm_linux_virtual_machine":   mapAzureVirtualMachine,
	"azurerm_windows_virtual_machine": mapAzureVirtualMachine,
	"azurerm_virtual_machine":         mapLegacyAzureVirtualMachine,
}

func isMachineType(tfType string) bool {
	_, ok := machineTypes[tfType]
	return ok
}

func mapResource(r stateResource) (domain.DesiredResource, error) {
	mapper, ok := machineTypes[r.Type]
	if !ok {
		return domain.DesiredResource{}, fmt.Errorf("unsupported Terraform resource type: %s", r.Type)
	}
	res, err := mapper(r)
	if err != nil {
		return domain.DesiredResource{}, err
	}
	if res.Name == "" {
		return domain.DesiredResource{}, fmt.Errorf("%s has no machine name", r.Address)
	}
	return res, nil
}

func mapAWSInstance(r stateResource) (domain.DesiredResource, error) {
	tags := stringMap(r.Attributes["tags"])
	res := domain.DesiredResource{
		Name:     tags[ec2.TagName],
		Ensure:   domain.EnsurePresent,
		Location: stringAttr(r.Attributes, "availability_zone"),
		Size:     stringAttr(r.Attributes, "instance_type"),
		User:     tags[ec2.TagAdminUser],
	}
	if res.Name == "" {
		res.Name = r.Name
	}

	ami := stringAttr(r.Attributes, "ami")
	ref := domain.ImageReference{
		Publisher: tags[ec2.TagImagePublisher],
		Offer:     tags[ec2.TagImageOffer],
		SKU:       tags[ec2.TagImageSKU],
		Version:   ami,
	}
	if ref.Complete() {
		res.Image = ref.String()
	}

	switch stringAttr(r.Attributes, "instance_state") {
	case "running":
		res.Ensure = domain.EnsureRunning
	case "stopped":
		res.Ensure = domain.EnsureStopped
	}
	return res, nil
}

func mapAzureVirtualMachine(r stateResource) (domain.DesiredResource, error) {
	res := domain.DesiredResource{
		Name:     stringAttr(r.Attributes, "name"),
		Ensure:   domain.EnsurePresent,
		Location: stringAttr(r.Attributes, "location"),
		Size:     stringAttr(r.Attributes, "size"),
		User:     stringAttr(r.Attributes, "admin_username"),
	}
	res.Image = imageFromBlock(r.Attributes["source_image_reference"])
	return res, nil
}

func mapLegacyAzureVirtualMachine(r stateResource) (domain.DesiredResource, error) {
	res := domain.DesiredResource{
		Name:     stringAttr(r.Attributes, "name"),
		Ensure:   domain.EnsurePresent,
		Location: stringAttr(r.Attributes, "location"),
		Size:     stringAttr(r.Attributes, "vm_size"),
	}
	res.Image = imageFromBlock(r.Attributes["storage_image_reference"])
	if profile := firstBlock(r.Attributes["os_profile"]); profile != nil {
		res.User = stringAttr(profile, "admin_username")
	}
	return res, nil
}

// imageFromBlock reads a publisher/offer/sku/version nested block, which
// state stores as a single element list.
func imageFromBlock(v any) string {
	block := firstBlock(v)
	if block == nil {
		return ""
	}
	ref := domain.ImageReference{
		Publisher: stringAttr(block, "publisher"),
		Offer:     stringAttr(block, "offer"),
		SKU:       stringAttr(block, "sku"),
		Version:   stringAttr(block, "version"),
	}
	if !ref.Complete() {
		return ""
	}
	return ref.String()
}

func firstBlock(v any) map[string]any {
	switch b := v.(type) {
	case []any:
		if len(b) == 0 {
			return nil
		}
		m, _ := b[0].(map[string]any)
		return m
	case map[string]any:
		return b
	}
	return nil
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func stringMap(v any) map[string]string {
	out := make(map[string]string)
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
