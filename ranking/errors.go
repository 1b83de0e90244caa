package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/patra-app/matchrank/store"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidAction      = errors.New("invalid action")
	ErrInvalidTarget      = errors.New("invalid target")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
)

// storeErr classifies a store error into one of the service errors
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w: %v", op, ErrUserNotFound, err)
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrInternal, err)
	}
}
