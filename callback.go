package operation

import (
	"context"
	"fmt"
)

type phase int

const (
	phaseBeforeStart phase = iota
	phaseAfterStart
	phaseBeforeComplete
	phaseAfterComplete
	phaseOnCancel
	phaseOnFinish
	phaseCount
)

func (p phase) String() string {
	switch p {
	case phaseBeforeStart:
		return "before_start"
	case phaseAfterStart:
		return "after_start"
	case phaseBeforeComplete:
		return "before_complete"
	case phaseAfterComplete:
		return "after_complete"
	case phaseOnCancel:
		return "on_cancel"
	case phaseOnFinish:
		return "on_finish"
	}
	return "unknown"
}

// MakeCallback coerces fn to a Callback. fn must conform to one of the
// following signatures:
//
//	func()
//	func() error
//	func(context.Context)
//	func(context.Context) error
//
// MakeCallback panics if fn has any other type. Construction-time options
// (WithBeforeStart et al.) and the dynamic registration methods coerce
// their arguments through MakeCallback, so a signature mismatch surfaces
// at wiring time, not mid-lifecycle.
func MakeCallback(fn any) Callback {
	switch f := fn.(type) {
	case Callback:
		return f
	case func(context.Context) error:
		return f
	case func(context.Context):
		return func(ctx context.Context) error {
			f(ctx)
			return nil
		}
	case func() error:
		return func(context.Context) error {
			return f()
		}
	case func():
		return func(context.Context) error {
			f()
			return nil
		}
	}
	panic(fmt.Errorf("callback type %T is not a supported function signature", fn))
}

func makeCallbacks(fns []any) []Callback {
	out := make([]Callback, len(fns))
	for i, fn := range fns {
		out[i] = MakeCallback(fn)
	}
	return out
}
