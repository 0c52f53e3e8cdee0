// Package operation provides a reusable boundary around a logical unit of
// work. An Operation demarcates where the unit starts and ends: callers
// enter and exit the boundary, and the Operation runs ordered lifecycle
// callbacks and acquires/releases scoped resources on their behalf, so
// application code never touches commit/rollback or connection handling
// directly.
//
// A single Operation is safe to share between goroutines: activation state
// is tracked per goroutine, so two goroutines can be inside the same
// Operation at the same time with fully independent lifecycles. Nested
// entries on one goroutine join the outer activation instead of starting a
// new one.
package operation

import (
	"sync"

	"github.com/petermattis/goid"
	"github.com/rs/zerolog"
)

// An Operation coordinates the boundary of a unit of work: an ordered set
// of scoped resources plus six ordered callback lists, one per lifecycle
// phase. Configuration is fixed at construction; use New with Option
// values to build one.
//
// Most callers never use Enter/Exit directly; use Invoke or InvokeResult,
// or one of the binding subpackages.
type Operation struct {
	resources []Resource
	callbacks [phaseCount][]Callback
	logger    zerolog.Logger

	mu     sync.Mutex
	active map[int64]*activation
}

// Option configures an Operation under construction.
type Option func(*Operation)

// WithResources appends scoped resources. Resources are acquired in the
// order given and released in reverse order.
func WithResources(resources ...Resource) Option {
	return func(o *Operation) {
		o.resources = append(o.resources, resources...)
	}
}

// WithBeforeStart appends callbacks run before any resource is acquired.
func WithBeforeStart(fns ...any) Option { return withCallbacks(phaseBeforeStart, fns) }

// WithAfterStart appends callbacks run once all resources are acquired.
func WithAfterStart(fns ...any) Option { return withCallbacks(phaseAfterStart, fns) }

// WithBeforeComplete appends callbacks run on successful completion,
// before resources are released.
func WithBeforeComplete(fns ...any) Option { return withCallbacks(phaseBeforeComplete, fns) }

// WithAfterComplete appends callbacks run on successful completion, after
// all resources have been released.
func WithAfterComplete(fns ...any) Option { return withCallbacks(phaseAfterComplete, fns) }

// WithOnCancel appends callbacks run when an activation is cancelled,
// whether by an error from the protected body, a Cancel signal, or a
// failure during startup or teardown.
func WithOnCancel(fns ...any) Option { return withCallbacks(phaseOnCancel, fns) }

// WithOnFinish appends callbacks run at the very end of every activation,
// completed or cancelled.
func WithOnFinish(fns ...any) Option { return withCallbacks(phaseOnFinish, fns) }

// WithLogger sets the logger used to record lifecycle transitions and any
// secondary teardown errors that are not the one propagated to the caller.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Operation) {
		o.logger = logger
	}
}

func withCallbacks(p phase, fns []any) Option {
	return func(o *Operation) {
		o.callbacks[p] = append(o.callbacks[p], makeCallbacks(fns)...)
	}
}

// New returns an Operation configured with the supplied options. New
// panics if a callback option was given a value that MakeCallback cannot
// coerce.
func New(opts ...Option) *Operation {
	op := &Operation{
		logger: zerolog.Nop(),
		active: map[int64]*activation{},
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// InProgress reports whether the calling goroutine is currently inside
// the boundary.
func (o *Operation) InProgress() bool {
	return o.current() != nil
}

// Depth returns the calling goroutine's nesting depth: the number of
// Enter calls not yet matched by Exit. Zero means the goroutine is
// outside the boundary.
func (o *Operation) Depth() int {
	if a := o.current(); a != nil {
		return a.depth
	}
	return 0
}

// BeforeComplete registers a one-shot callback to run on completion of
// the current activation, before resources are released and after the
// static before-complete list. Returns ErrNotActive if the calling
// goroutine is not inside the boundary.
func (o *Operation) BeforeComplete(fn any) error { return o.registerDynamic(phaseBeforeComplete, fn) }

// AfterComplete registers a one-shot callback to run on completion of the
// current activation, after resources are released and after the static
// after-complete list. Returns ErrNotActive if the calling goroutine is
// not inside the boundary.
func (o *Operation) AfterComplete(fn any) error { return o.registerDynamic(phaseAfterComplete, fn) }

// OnCancel registers a one-shot callback to run if the current activation
// is cancelled. Returns ErrNotActive if the calling goroutine is not
// inside the boundary.
func (o *Operation) OnCancel(fn any) error { return o.registerDynamic(phaseOnCancel, fn) }

// OnFinish registers a one-shot callback to run when the current
// activation ends, completed or cancelled. Returns ErrNotActive if the
// calling goroutine is not inside the boundary.
func (o *Operation) OnFinish(fn any) error { return o.registerDynamic(phaseOnFinish, fn) }

// registerDynamic appends a one-shot callback to the calling goroutine's
// activation. One-shot callbacks run after the corresponding static list
// and are discarded when the activation ends, regardless of outcome.
func (o *Operation) registerDynamic(p phase, fn any) error {
	a := o.current()
	if a == nil {
		return ErrNotActive
	}
	a.dynamic[p] = append(a.dynamic[p], MakeCallback(fn))
	return nil
}

// current returns the calling goroutine's activation, or nil. The map is
// guarded by o.mu; each activation itself is only ever touched by its
// owning goroutine.
func (o *Operation) current() *activation {
	gid := goid.Get()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[gid]
}

func (o *Operation) store(gid int64, a *activation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[gid] = a
}

func (o *Operation) remove(gid int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, gid)
}
