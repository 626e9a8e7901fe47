// Package resilience enforces the degrade-to-default contract around
// third-party collaborators: personalization and analytics failures are
// absorbed here, never surfaced to callers.
package resilience

import (
	"fmt"
	"log/slog"
)

// Degrade runs fn and returns its value, or defaultValue when fn fails
// or panics. The error is logged and absorbed; Degrade never returns a
// non-nil error to its caller. Every external-SDK call in the
// personalization and analytics path goes through here so the
// never-throw contract lives in one place.
func Degrade[T any](logger *slog.Logger, operation string, defaultValue T, fn func() (T, error)) (result T) {
	result = defaultValue

	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("degraded to default after panic", "operation", operation, "panic", fmt.Sprint(r))
			}
		}
	}()

	value, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn("degraded to default", "operation", operation, "error", err.Error())
		}
		return defaultValue
	}
	return value
}
