// Package async provides safe goroutine helpers for fire-and-forget work.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, logger, 5*time.Second, "execution time update", func(ctx context.Context) error {
//	    return store.UpdateExecutionTime(ctx, txID, execMS)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			// Log but don't crash, background work is best effort
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// SafeGoDetached is like SafeGo but detaches from the parent's cancellation
// while keeping its values. Used for work that must outlive the request,
// such as post-debit bookkeeping.
func SafeGoDetached(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	SafeGo(context.WithoutCancel(parentCtx), logger, timeout, taskName, fn)
}
