package operation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"go.uber.org/multierr"
)

// activation is one outermost Enter-to-Exit cycle on a single goroutine.
// It is created on the first Enter, destroyed when depth returns to zero
// and teardown finishes, and is only ever mutated by its owning goroutine.
type activation struct {
	id    uuid.UUID
	ctx   context.Context
	depth int

	cancelled      bool
	cancelCause    error
	completedEarly bool

	acquired []Resource
	dynamic  [phaseCount][]Callback
}

// Enter begins (or joins) the boundary on the calling goroutine.
//
// If the goroutine is already inside the boundary, Enter only increments
// the nesting depth: no callbacks run and no resources are re-acquired.
//
// On first entry, Enter runs the before-start callbacks, acquires every
// resource in order, then runs the after-start callbacks. If any step
// fails, resources acquired so far are released in reverse order, the
// on-cancel and on-finish callbacks run, and the failure is returned
// wrapped in ErrStartup; the boundary never becomes active.
//
// ctx is retained for the duration of the activation and handed to every
// callback and resource call.
func (o *Operation) Enter(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a := o.current(); a != nil {
		a.depth++
		return nil
	}

	a := &activation{
		id:  uuid.New(),
		ctx: ctx,
	}

	if err := o.runStrict(a, phaseBeforeStart); err != nil {
		return o.abortStart(a, err)
	}
	for _, r := range o.resources {
		if err := r.Acquire(ctx); err != nil {
			var sink errorSink
			o.releaseAcquired(a, err, &sink)
			return o.abortStart(a, err)
		}
		a.acquired = append(a.acquired, r)
	}
	if err := o.runStrict(a, phaseAfterStart); err != nil {
		var sink errorSink
		o.releaseAcquired(a, err, &sink)
		return o.abortStart(a, err)
	}

	a.depth = 1
	o.store(goid.Get(), a)

	o.logger.Debug().Stringer("activation", a.id).Msg("Operation boundary opened")
	return nil
}

// Exit ends one level of nesting on the calling goroutine. err is
// whatever error the protected body produced, or nil.
//
// An inner exit (depth stays above zero) performs no teardown and returns
// err unchanged. The outermost exit performs full teardown exactly once
// and returns the prevailing error: the body's own error wins over any
// teardown failure, except that a Cancel with Suppress set is swallowed
// when teardown itself succeeds. Exit on a goroutine that never entered
// returns ErrNotActive.
func (o *Operation) Exit(err error) error {
	a := o.current()
	if a == nil {
		return ErrNotActive
	}
	a.depth--
	if a.depth > 0 {
		return err
	}

	// Unpublish the record before teardown so callbacks running during
	// teardown observe the boundary as inactive: dynamic registration
	// fails with ErrNotActive rather than landing on a dying activation.
	o.remove(goid.Get())
	return o.teardown(a, err)
}

// Complete runs the completion callbacks ahead of the outermost Exit,
// while resources remain open. Completion callbacks run at most once per
// activation no matter how many times completion is signalled: a later
// natural Exit skips straight to resource release, and repeated Complete
// calls are no-ops. A completion callback failure cancels the activation
// and is returned wrapped in ErrTeardown.
//
// Returns ErrNotActive if the calling goroutine is not inside the
// boundary. Complete on an already-cancelled activation does nothing.
func (o *Operation) Complete() error {
	a := o.current()
	if a == nil {
		return ErrNotActive
	}
	if a.completedEarly || a.cancelled {
		return nil
	}
	a.completedEarly = true

	var sink errorSink
	o.runAll(a, phaseBeforeComplete, &sink)
	if sink.first == nil {
		o.runAll(a, phaseAfterComplete, &sink)
	}

	if sink.first != nil {
		err := fmt.Errorf("%w: %w", ErrTeardown, sink.first)
		a.cancelled = true
		a.cancelCause = err
		return err
	}
	return nil
}

// Cancel marks the calling goroutine's activation as cancelled: the
// outermost Exit will take the cancellation path (rollback-intent
// release, on-cancel callbacks) even if the body returns no error.
// Returns ErrNotActive if the goroutine is not inside the boundary.
func (o *Operation) Cancel() error {
	a := o.current()
	if a == nil {
		return ErrNotActive
	}
	a.cancelled = true
	if a.cancelCause == nil {
		a.cancelCause = Cancel{}
	}
	return nil
}

// teardown runs once per activation, when depth returns to zero. Once it
// begins, every step executes: a failure in one step never prevents the
// remaining releases or callbacks from running. The first failure becomes
// the propagated error; the rest are recorded and logged.
func (o *Operation) teardown(a *activation, workErr error) error {
	cancelled := a.cancelled || workErr != nil

	var sink errorSink

	if !cancelled && !a.completedEarly {
		o.runAll(a, phaseBeforeComplete, &sink)
	}

	// Resources release with the prevailing error as their cause so they
	// can choose commit or rollback. A cancellation with no propagating
	// error still carries rollback intent via the recorded cancel cause.
	cause := workErr
	if cause == nil {
		cause = sink.first
	}
	if cause == nil {
		cause = a.cancelCause
	}
	o.releaseAcquired(a, cause, &sink)

	if sink.first != nil {
		cancelled = true
	}

	if !cancelled && !a.completedEarly {
		o.runAll(a, phaseAfterComplete, &sink)
		if sink.first != nil {
			cancelled = true
		}
	}

	if cancelled {
		o.runAll(a, phaseOnCancel, &sink)
	}
	o.runAll(a, phaseOnFinish, &sink)

	if errs := multierr.Errors(sink.recorded); len(errs) > 1 {
		o.logger.Error().
			Stringer("activation", a.id).
			Int("failures", len(errs)).
			Err(sink.recorded).
			Msg("Multiple teardown failures; only the first is returned")
	}
	o.logger.Debug().
		Stringer("activation", a.id).
		Bool("cancelled", cancelled).
		Msg("Operation boundary closed")

	return o.prevailing(workErr, &sink)
}

// prevailing decides which error leaves the boundary. The body's error
// wins over teardown failures; a suppressible Cancel from the body is
// swallowed only when teardown succeeded cleanly.
func (o *Operation) prevailing(workErr error, sink *errorSink) error {
	if workErr != nil {
		if c, ok := AsCancel(workErr); ok && c.Suppress {
			if sink.first == nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrTeardown, sink.first)
		}
		return workErr
	}
	if sink.first != nil {
		return fmt.Errorf("%w: %w", ErrTeardown, sink.first)
	}
	return nil
}

// abortStart handles a failure before the boundary became active: the
// cancellation and finish callbacks still run, and the original cause is
// returned wrapped in ErrStartup. Depth never left zero, so no activation
// record is published.
func (o *Operation) abortStart(a *activation, cause error) error {
	var sink errorSink
	o.runAll(a, phaseOnCancel, &sink)
	o.runAll(a, phaseOnFinish, &sink)

	o.logger.Debug().
		Stringer("activation", a.id).
		Err(cause).
		Msg("Operation boundary aborted during startup")

	return fmt.Errorf("%w: %w", ErrStartup, cause)
}

// runStrict runs a start-phase callback list, stopping at the first
// failure. Start phases have no dynamic callbacks: registration requires
// an already-active boundary.
func (o *Operation) runStrict(a *activation, p phase) error {
	for _, cb := range o.callbacks[p] {
		if err := cb(a.ctx); err != nil {
			return err
		}
	}
	return nil
}

// runAll runs a phase's static list then its one-shot dynamic list, in
// registration order, with failures going to the sink. The dynamic list
// is consumed either way: a failure anywhere in the static list discards
// the phase's one-shots unrun, and a one-shot failure discards the
// one-shots after it.
func (o *Operation) runAll(a *activation, p phase, sink *errorSink) {
	ok := true
	for _, cb := range o.callbacks[p] {
		if !o.runInto(a, p, cb, sink) {
			ok = false
		}
	}

	dynamic := a.dynamic[p]
	a.dynamic[p] = nil
	if !ok {
		return
	}
	for _, cb := range dynamic {
		if !o.runInto(a, p, cb, sink) {
			return
		}
	}
}

func (o *Operation) runInto(a *activation, p phase, cb Callback, sink *errorSink) bool {
	if err := cb(a.ctx); err != nil {
		o.logger.Error().
			Err(err).
			Stringer("activation", a.id).
			Stringer("phase", p).
			Msg("Lifecycle callback failed")
		sink.add(err)
		return false
	}
	return true
}

// releaseAcquired releases every acquired resource in reverse acquisition
// order, passing cause so each resource can choose commit or rollback.
// Every resource gets a release attempt even if an earlier one fails.
func (o *Operation) releaseAcquired(a *activation, cause error, sink *errorSink) {
	for i := len(a.acquired) - 1; i >= 0; i-- {
		if err := a.acquired[i].Release(a.ctx, cause); err != nil {
			o.logger.Error().
				Err(err).
				Stringer("activation", a.id).
				Int("resource", i).
				Msg("Resource release failed")
			sink.add(err)
		}
	}
	a.acquired = nil
}

// errorSink collects teardown-time failures. The first failure is the one
// ultimately propagated; every failure is retained in the recorded
// aggregate so none is silently discarded.
type errorSink struct {
	first    error
	recorded error
}

func (s *errorSink) add(err error) {
	if err == nil {
		return
	}
	if s.first == nil {
		s.first = err
	}
	s.recorded = multierr.Append(s.recorded, err)
}
