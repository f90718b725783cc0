package bridge

import (
	"context"
	"errors"

	"main/pkg/exception"
)

// isFatal reports whether a venue error is unrecoverable and must stop
// supervision instead of triggering a reconnect.
func isFatal(err error) bool {
	return errors.Is(err, exception.ErrConnAuthFailed) ||
		errors.Is(err, exception.ErrStreamFatal)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
