package service

import (
	"context"
	"sort"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
)

// Inventory is the name-keyed view of remote machines for a single pass. It
// is built once from a fetch and then only changed by the outcome of actions
// taken during the same pass. It is not safe for concurrent use.
type Inventory struct {
	machines map[string]*domain.MachineDescriptor
}

func NewInventory(ctx context.Context, descriptors []domain.MachineDescriptor, logger ports.Logger) *Inventory {
	inv := &Inventory{machines: make(map[string]*domain.MachineDescriptor, len(descriptors))}
	for i := range descriptors {
		d := descriptors[i]
		if _, dup := inv.machines[d.Name]; dup {
			logger.Warnf(ctx, "Duplicate machine name %q in listing, keeping the first", d.Name)
			continue
		}
		inv.machines[d.Name] = &d
	}
	return inv
}

func (i *Inventory) Get(name string) (*domain.MachineDescriptor, bool) {
	d, ok := i.machines[name]
	return d, ok
}

func (i *Inventory) Put(d domain.MachineDescriptor) {
	i.machines[d.Name] = &d
}

// SetEnsure records the outcome of an action. Moving to absent drops the
// remote handle.
func (i *Inventory) SetEnsure(name string, state domain.EnsureState) {
	d, ok := i.machines[name]
	if !ok {
		return
	}
	d.Ensure = state
	if state == domain.EnsureAbsent {
		d.Handle = nil
	}
}

func (i *Inventory) Len() int {
	return len(i.machines)
}

// Descriptors returns copies of every descriptor ordered by name.
func (i *Inventory) Descriptors() []domain.MachineDescriptor {
	out := make([]domain.MachineDescriptor, 0, len(i.machines))
	for _, d := range i.machines {
		out = append(out, *d)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
