package limiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/olusolaa/vm-reconciler/internal/core/ports"
)

const (
	DefaultRPS = 20
	MinRPS     = 1
	MaxRPS     = 100
)

// Limiter throttles the calls one remote client makes to its control plane.
type Limiter struct {
	limiter *rate.Limiter
	logger  ports.Logger
	rps     int
}

// New returns a limiter allowing rps calls per second with a burst of the
// same size. Out of range values fall back to DefaultRPS; zero means default.
func New(rps int, logger ports.Logger) *Limiter {
	limitValue := DefaultRPS
	logMsg := "Initializing API rate limiter"
	if rps >= MinRPS && rps <= MaxRPS {
		limitValue = rps
		logMsg = fmt.Sprintf("%s with configured rate", logMsg)
	} else if rps != 0 {
		logger.Warnf(context.Background(), "Invalid API RPS configured (%d), using default %d RPS. Valid range: %d-%d.", rps, DefaultRPS, MinRPS, MaxRPS)
		logMsg = fmt.Sprintf("%s with default rate (invalid config)", logMsg)
	} else {
		logMsg = fmt.Sprintf("%s with default rate", logMsg)
	}
	logger.Debugf(context.Background(), "%s: %d RPS", logMsg, limitValue)

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(limitValue), limitValue),
		logger:  logger,
		rps:     limitValue,
	}
}

func (l *Limiter) RPS() int {
	return l.rps
}

func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			l.logger.Warnf(ctx, "Error waiting for API rate limiter: %v", err)
		}
		return err
	}
	return nil
}
