package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardConfig bounds every storage call
type GuardConfig struct {
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// StorageGuard applies a per-call timeout and a circuit breaker to storage access.
// Timeouts and an open breaker surface as models.ErrStorageUnavailable.
type StorageGuard struct {
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewStorageGuard creates a guard from cfg, filling zero values with defaults
func NewStorageGuard(cfg GuardConfig) *StorageGuard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	logger := util.GetLogger()
	settings := gobreaker.Settings{
		Name:    "storage",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// Domain errors mean storage answered.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, models.ErrStorageUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			util.StorageBreakerState.Set(float64(to))
		},
	}

	return &StorageGuard{
		timeout: cfg.Timeout,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// guarded runs fn under the guard's timeout and breaker.
func guarded[T any](ctx context.Context, g *StorageGuard, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	start := time.Now()
	defer func() {
		util.StorageOperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		v, err := fn(callCtx)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, models.ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %s exceeded %s: %v", models.ErrStorageUnavailable, op, g.timeout, err)
		}
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %s: %v", models.ErrStorageUnavailable, op, err)
	}
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// guardedExec is guarded for calls that only return an error.
func guardedExec(ctx context.Context, g *StorageGuard, op string, fn func(context.Context) error) error {
	_, err := guarded(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
