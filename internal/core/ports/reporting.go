package ports

import (
	"context"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

type Reporter interface {
	Report(ctx context.Context, result domain.PassResult) error
	ReportInventory(ctx context.Context, machines []domain.MachineDescriptor) error
}
