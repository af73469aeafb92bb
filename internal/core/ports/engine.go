package ports

import (
	"context"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

type ReconciliationEngine interface {
	Run(ctx context.Context) (domain.PassResult, error)
}
