package pyext

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// handleCallback runs fn under the interpreter lock and translates its
// outcome into the native-call convention: a new reference on success, or
// NullHandle with the exception set. A panic in fn becomes a SystemError.
func (e *engine) handleCallback(ctx context.Context, location string, fn func(ctx context.Context, py Python) (Object, error)) (res Handle) {
	ctx, py, release := e.acquireGIL(ctx)
	defer release()

	defer func() {
		if recoverErr := recover(); recoverErr != nil {
			e.logger.Debug("callback panicked", zap.String("location", location), zap.Any("panic", recoverErr))
			(&PyErr{
				Type:     SystemError,
				Message:  fmt.Sprintf("panic: %v", recoverErr),
				Location: location,
			}).Restore(py)
			res = NullHandle
		}
	}()

	obj, err := fn(ctx, py)
	if err != nil {
		pyErr := ToPyErr(err)
		if pyErr.Location == "" {
			stamped := *pyErr
			stamped.Location = location
			pyErr = &stamped
		}
		e.logger.Debug("callback failed", zap.String("location", location), zap.Error(pyErr))
		pyErr.Restore(py)
		return NullHandle
	}

	if obj.IsNull() {
		return NoneHandle
	}
	return obj.Steal()
}
