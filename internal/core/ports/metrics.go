package ports

import "github.com/olusolaa/vm-reconciler/internal/core/domain"

type MetricsRecorder interface {
	ObserveAction(action domain.Action, status domain.ActionStatus)
	ObservePass(failed bool)
}
