package domain

import "strings"

// ImageSeparator joins the four image reference parts.
const ImageSeparator = ":"

type ImageReference struct {
	Publisher string
	Offer     string
	SKU       string
	Version   string
}

// Complete reports whether all four parts are set.
func (r ImageReference) Complete() bool {
	return r.Publisher != "" && r.Offer != "" && r.SKU != "" && r.Version != ""
}

func (r ImageReference) String() string {
	return strings.Join([]string{r.Publisher, r.Offer, r.SKU, r.Version}, ImageSeparator)
}

// ParseImageReference splits "publisher:offer:sku:version". It returns false
// when the string does not have exactly four non-empty parts.
func ParseImageReference(image string) (ImageReference, bool) {
	parts := strings.Split(image, ImageSeparator)
	if len(parts) != 4 {
		return ImageReference{}, false
	}
	ref := ImageReference{
		Publisher: strings.TrimSpace(parts[0]),
		Offer:     strings.TrimSpace(parts[1]),
		SKU:       strings.TrimSpace(parts[2]),
		Version:   strings.TrimSpace(parts[3]),
	}
	return ref, ref.Complete()
}

// MachineRecord is one machine as reported by a remote control plane, already
// flattened out of the provider's native object. Image is nil when the remote
// record carried no image reference at all.
type MachineRecord struct {
	ID            string
	Name          string
	Location      string
	Status        string
	Image         *ImageReference
	AdminUsername string
	ComputerName  string
	Size          string

	// Native is the provider SDK object the record was built from.
	Native any
}

// MachineDescriptor is the local snapshot of one remote machine for the
// duration of a reconciliation pass.
type MachineDescriptor struct {
	Name     string
	Image    string
	Ensure   EnsureState
	Location string
	Size     string
	Username string
	Hostname string

	// Handle points back at the record the descriptor came from. It is nil
	// whenever Ensure is absent.
	Handle *MachineRecord
}

func (d MachineDescriptor) Exists() bool {
	return d.Ensure.Exists()
}

// DesiredResource is the state a consumer declares for one named machine.
// Image, Location, Size, User and Password are creation-time parameters.
type DesiredResource struct {
	Name     string      `mapstructure:"name" validate:"required,max=64"`
	Ensure   EnsureState `mapstructure:"ensure" validate:"omitempty,oneof=present running stopped absent"`
	Image    string      `mapstructure:"image"`
	Location string      `mapstructure:"location"`
	Size     string      `mapstructure:"size"`
	User     string      `mapstructure:"user"`
	Password string      `mapstructure:"password"`
}

// EffectiveEnsure returns the desired ensure state, defaulting to present.
func (r DesiredResource) EffectiveEnsure() EnsureState {
	if r.Ensure == "" {
		return EnsurePresent
	}
	return r.Ensure
}

// CreateParams are the parameters handed to a remote client on create.
type CreateParams struct {
	Name     string
	Image    ImageReference
	Location string
	Size     string
	User     string
	Password string
}

// Normalized status strings remote clients report in MachineRecord.Status.
const (
	RemoteStatusRunning            = "Running"
	RemoteStatusStopped            = "Stopped"
	RemoteStatusStoppedDeallocated = "StoppedDeallocated"
)
