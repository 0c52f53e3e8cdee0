package operation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTx struct {
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *testTx) Commit(ctx context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *testTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func TestTxResourceCommitsOnCompletion(t *testing.T) {
	tx := &testTx{}
	res := NewTxResource(func(ctx context.Context) (Transaction, error) {
		return tx, nil
	})
	op := New(WithResources(res))

	require.NoError(t, op.Enter(context.Background()))
	require.NoError(t, op.Exit(nil))

	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestTxResourceRollsBackOnError(t *testing.T) {
	tx := &testTx{}
	res := NewTxResource(func(ctx context.Context) (Transaction, error) {
		return tx, nil
	})
	op := New(WithResources(res))

	workErr := errors.New("work failed")
	require.NoError(t, op.Enter(context.Background()))
	assert.Equal(t, workErr, op.Exit(workErr))

	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestTxResourceRollsBackOnExplicitCancel(t *testing.T) {
	tx := &testTx{}
	res := NewTxResource(func(ctx context.Context) (Transaction, error) {
		return tx, nil
	})
	op := New(WithResources(res))

	require.NoError(t, op.Enter(context.Background()))
	require.NoError(t, op.Cancel())
	require.NoError(t, op.Exit(nil))

	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestTxResourceRollsBackWhenCompleteFails(t *testing.T) {
	tx := &testTx{}
	res := NewTxResource(func(ctx context.Context) (Transaction, error) {
		return tx, nil
	})
	boom := errors.New("flush failed")
	op := New(
		WithResources(res),
		WithBeforeComplete(func() error { return boom }),
	)

	require.NoError(t, op.Enter(context.Background()))
	require.ErrorIs(t, op.Complete(), boom)
	require.NoError(t, op.Exit(nil))

	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestTxResourceRollsBackOnSuppressedCancel(t *testing.T) {
	tx := &testTx{}
	res := NewTxResource(func(ctx context.Context) (Transaction, error) {
		return tx, nil
	})
	op := New(WithResources(res))

	require.NoError(t, op.Enter(context.Background()))
	require.NoError(t, op.Exit(Cancel{Suppress: true}))

	assert.True(t, tx.rolledBack)
}

func TestTxResourceBeginFailure(t *testing.T) {
	boom := errors.New("no connection")
	res := NewTxResource(func(ctx context.Context) (Transaction, error) {
		return nil, boom
	})
	op := New(WithResources(res))

	err := op.Enter(context.Background())
	require.ErrorIs(t, err, ErrStartup)
	require.ErrorIs(t, err, boom)
}

func TestTxResourceCommitFailurePropagates(t *testing.T) {
	boom := errors.New("commit failed")
	tx := &testTx{commitErr: boom}
	res := NewTxResource(func(ctx context.Context) (Transaction, error) {
		return tx, nil
	})
	op := New(WithResources(res))

	require.NoError(t, op.Enter(context.Background()))
	err := op.Exit(nil)

	require.ErrorIs(t, err, ErrTeardown)
	require.ErrorIs(t, err, boom)
}

func TestResourceFuncs(t *testing.T) {
	var acquired bool
	var cause error
	res := ResourceFuncs{
		AcquireFunc: func(ctx context.Context) error {
			acquired = true
			return nil
		},
		ReleaseFunc: func(ctx context.Context, err error) error {
			cause = err
			return nil
		},
	}
	op := New(WithResources(res))

	workErr := errors.New("work failed")
	require.NoError(t, op.Enter(context.Background()))
	assert.Equal(t, workErr, op.Exit(workErr))

	assert.True(t, acquired)
	assert.Equal(t, workErr, cause)
}

func TestResourceFuncsNilFuncs(t *testing.T) {
	op := New(WithResources(ResourceFuncs{}))

	require.NoError(t, op.Enter(context.Background()))
	require.NoError(t, op.Exit(nil))
}
