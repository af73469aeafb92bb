package ec2

import (
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"gopkg.in/yaml.v3"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

// Instance tags carrying what EC2 does not model natively.
const (
	TagName           = "Name"
	TagImagePublisher = "vmr:image-publisher"
	TagImageOffer     = "vmr:image-offer"
	TagImageSKU       = "vmr:image-sku"
	TagAdminUser      = "vmr:admin-user"
)

// MapInstance flattens an EC2 instance into a machine record. The image
// reference is only set when all three image tags are present; the AMI id
// is its version.
func MapInstance(instance types.Instance) domain.MachineRecord {
	tags := make(map[string]string, len(instance.Tags))
	for _, tag := range instance.Tags {
		if tag.Key != nil && tag.Value != nil {
			tags[*tag.Key] = *tag.Value
		}
	}

	rec := domain.MachineRecord{
		ID:            aws.ToString(instance.InstanceId),
		Name:          tags[TagName],
		Status:        StatusFromState(instance.State),
		AdminUsername: tags[TagAdminUser],
		ComputerName:  aws.ToString(instance.PrivateDnsName),
		Size:          string(instance.InstanceType),
		Native:        instance,
	}
	if instance.Placement != nil {
		rec.Location = aws.ToString(instance.Placement.AvailabilityZone)
	}

	publisher, offer, sku := tags[TagImagePublisher], tags[TagImageOffer], tags[TagImageSKU]
	if publisher != "" && offer != "" && sku != "" {
		rec.Image = &domain.ImageReference{
			Publisher: publisher,
			Offer:     offer,
			SKU:       sku,
			Version:   aws.ToString(instance.ImageId),
		}
	}
	return rec
}

// StatusFromState normalizes an EC2 instance state name. Only stopped maps
// to a stopped status; stopping and the other transitional states keep their
// own names.
func StatusFromState(state *types.InstanceState) string {
	if state == nil {
		return ""
	}
	switch state.Name {
	case types.InstanceStateNameStopped:
		return domain.RemoteStatusStopped
	case types.InstanceStateNameRunning:
		return domain.RemoteStatusRunning
	case types.InstanceStateNamePending:
		return "Pending"
	case types.InstanceStateNameStopping:
		return "Stopping"
	case types.InstanceStateNameShuttingDown:
		return "ShuttingDown"
	case types.InstanceStateNameTerminated:
		return "Terminated"
	}
	return string(state.Name)
}

func creationTags(params domain.CreateParams) []types.Tag {
	pairs := []struct{ key, value string }{
		{TagName, params.Name},
		{TagImagePublisher, params.Image.Publisher},
		{TagImageOffer, params.Image.Offer},
		{TagImageSKU, params.Image.SKU},
		{TagAdminUser, params.User},
	}
	tags := make([]types.Tag, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		tags = append(tags, types.Tag{Key: aws.String(p.key), Value: aws.String(p.value)})
	}
	return tags
}

type cloudUser struct {
	Name              string `yaml:"name"`
	PlainTextPassword string `yaml:"plain_text_passwd,omitempty"`
	LockPassword      bool   `yaml:"lock_passwd"`
	Sudo              string `yaml:"sudo"`
	Shell             string `yaml:"shell"`
}

type cloudConfig struct {
	Users       []cloudUser `yaml:"users"`
	SSHPassword bool        `yaml:"ssh_pwauth"`
}

// cloudInitUserData renders the base64 encoded cloud-config that creates the
// admin user. It returns "" when no user is requested.
func cloudInitUserData(user, password string) (string, error) {
	if user == "" {
		return "", nil
	}
	cfg := cloudConfig{
		Users: []cloudUser{{
			Name:              user,
			PlainTextPassword: password,
			LockPassword:      password == "",
			Sudo:              "ALL=(ALL) NOPASSWD:ALL",
			Shell:             "/bin/bash",
		}},
		SSHPassword: password != "",
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(append([]byte("#cloud-config\n"), out...)), nil
}
