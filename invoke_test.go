package operation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeSuccess(t *testing.T) {
	rec := &recorder{}
	res := &testResource{rec: rec, name: "a"}
	op := newFixture(rec, res)

	ran := false
	err := Invoke(context.Background(), op, func(ctx context.Context) error {
		ran = true
		assert.True(t, op.InProgress())
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.NotContains(t, rec.order(), "on_cancel")
	assert.False(t, op.InProgress())
}

func TestInvokeBodyError(t *testing.T) {
	rec := &recorder{}
	op := newFixture(rec)

	workErr := errors.New("work failed")
	err := Invoke(context.Background(), op, func(ctx context.Context) error {
		return workErr
	})

	assert.Equal(t, workErr, err)
	assert.Contains(t, rec.order(), "on_cancel")
}

func TestInvokeRecoversPanic(t *testing.T) {
	rec := &recorder{}
	op := newFixture(rec)

	err := Invoke(context.Background(), op, func(ctx context.Context) error {
		panic("something broke")
	})

	require.ErrorIs(t, err, ErrRecovered)
	assert.Contains(t, rec.order(), "on_cancel")
	assert.False(t, op.InProgress())
}

func TestInvokePanickedCancelIsSuppressed(t *testing.T) {
	rec := &recorder{}
	op := newFixture(rec)

	err := Invoke(context.Background(), op, func(ctx context.Context) error {
		panic(Cancel{Suppress: true})
	})

	require.NoError(t, err)
	assert.Contains(t, rec.order(), "on_cancel")
}

func TestInvokeNested(t *testing.T) {
	rec := &recorder{}
	op := newFixture(rec)
	ctx := context.Background()

	inner := func(ctx context.Context) error {
		return Invoke(ctx, op, func(ctx context.Context) error {
			assert.Equal(t, 2, op.Depth())
			return nil
		})
	}

	err := Invoke(ctx, op, inner)
	require.NoError(t, err)

	// One activation: every phase ran once.
	assert.Equal(t, []string{
		"before_start",
		"after_start",
		"before_complete",
		"after_complete",
		"on_finish",
	}, rec.order())
}

func TestInvokeNestedCancelSuppressedAtOuterBoundary(t *testing.T) {
	rec := &recorder{}
	op := newFixture(rec)
	ctx := context.Background()

	sawInnerErr := false
	err := Invoke(ctx, op, func(ctx context.Context) error {
		err := Invoke(ctx, op, func(ctx context.Context) error {
			return Cancel{Suppress: true}
		})
		// The inner exit is not the boundary; the signal keeps
		// propagating until the outermost exit swallows it.
		if _, ok := AsCancel(err); ok {
			sawInnerErr = true
		}
		return err
	})

	require.NoError(t, err)
	assert.True(t, sawInnerErr)
	assert.Contains(t, rec.order(), "on_cancel")
}

func TestInvokeResult(t *testing.T) {
	rec := &recorder{}
	op := newFixture(rec)

	type output struct{ N int }
	out, err := InvokeResult(context.Background(), op, func(ctx context.Context) (*output, error) {
		return &output{N: 42}, nil
	})

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 42, out.N)
}

func TestInvokeResultSuppressedCancel(t *testing.T) {
	rec := &recorder{}
	op := newFixture(rec)

	type output struct{ N int }
	out, err := InvokeResult(context.Background(), op, func(ctx context.Context) (*output, error) {
		return nil, Cancel{Suppress: true}
	})

	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestInvokeStartupFailure(t *testing.T) {
	boom := errors.New("boom")
	op := New(WithBeforeStart(func() error { return boom }))

	ran := false
	err := Invoke(context.Background(), op, func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.ErrorIs(t, err, ErrStartup)
	require.ErrorIs(t, err, boom)
	assert.False(t, ran)
}
