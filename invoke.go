package operation

import (
	"context"
	"errors"
	"fmt"
)

var ErrRecovered = errors.New("operation recovered from panic")

// Invoke runs body inside op's boundary: it enters the boundary, runs the
// body, and exits with whatever error the body produced. A panic in the
// body is recovered and converted to an ErrRecovered-wrapped error, which
// routes the activation through the cancellation path.
//
// Invoke is the intended way to protect a method body with an operation
// held by the enclosing object:
//
//	func (s *Service) Transfer(ctx context.Context, from, to string) error {
//	    return operation.Invoke(ctx, s.op, func(ctx context.Context) error {
//	        // protected work
//	        return nil
//	    })
//	}
//
// Nested Invoke calls through the same Operation on one goroutine join
// the outer activation.
func Invoke(ctx context.Context, op *Operation, body func(context.Context) error) error {
	if err := op.Enter(ctx); err != nil {
		return err
	}
	err := invokeWithRecover(ctx, body)
	return op.Exit(err)
}

// InvokeResult is Invoke for bodies that produce a value. On any failure,
// including a suppressed cancellation, the returned value is nil.
func InvokeResult[O any](ctx context.Context, op *Operation, body func(context.Context) (*O, error)) (*O, error) {
	if err := op.Enter(ctx); err != nil {
		return nil, err
	}

	var out *O
	err := invokeWithRecover(ctx, func(ctx context.Context) error {
		var err error
		out, err = body(ctx)
		return err
	})

	if err := op.Exit(err); err != nil {
		return nil, err
	}
	if err != nil {
		// The body's error was suppressed at the boundary; its output is
		// not meaningful.
		return nil, nil
	}
	return out, nil
}

func invokeWithRecover(ctx context.Context, body func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrRecovered, e)
			} else {
				err = fmt.Errorf("%w: %v", ErrRecovered, r)
			}
		}
	}()
	err = body(ctx)
	return
}
