package operation

import (
	"context"
	"errors"
)

var (
	// ErrNotActive is returned when an Operation method that requires an
	// active boundary (Complete, dynamic callback registration, Exit) is
	// called on a goroutine that has not entered the boundary.
	ErrNotActive = errors.New("operation is not active")

	// ErrStartup wraps any error raised while the boundary is starting:
	// a before-start or after-start callback failure, or a resource
	// acquisition failure. The boundary never reaches the active state.
	ErrStartup = errors.New("operation startup failed")

	// ErrTeardown wraps the first error raised while the boundary is
	// ending: a completion callback failure or a resource release failure.
	ErrTeardown = errors.New("operation teardown failed")
)

// A Callback runs at a fixed point in the operation lifecycle. Callbacks
// receive the context passed to Enter. See MakeCallback for the set of
// function signatures accepted wherever a Callback is expected.
type Callback func(ctx context.Context) error

// A Resource is acquired when the boundary starts and released when it
// ends. Release receives the prevailing error, if any, so a transactional
// resource can decide between commit and rollback. Resources are released
// in the exact reverse of acquisition order, and every resource gets a
// release attempt even if a sibling's release fails.
type Resource interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context, cause error) error
}

// Cancel is the distinguished error used to request rollback semantics
// from inside the boundary. Returning (or panicking with) a Cancel from
// the protected body routes the activation through the cancellation path.
//
// A Cancel with Suppress set still cancels the activation, but is
// swallowed at the outermost Exit: the caller observes a normal return.
// No other error kind is ever suppressed.
type Cancel struct {
	Suppress bool
}

func (c Cancel) Error() string { return "operation canceled" }

// AsCancel reports whether err is, or wraps, a Cancel.
func AsCancel(err error) (Cancel, bool) {
	var c Cancel
	if errors.As(err, &c) {
		return c, true
	}
	return Cancel{}, false
}

// Transaction is the commit/rollback shape bridged into a Resource by
// TxResource.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionProvider is a transaction factory.
type TransactionProvider func(ctx context.Context) (Transaction, error)
