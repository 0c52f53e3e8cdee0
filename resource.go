package operation

import (
	"context"
	"sync"

	"github.com/petermattis/goid"
)

// ResourceFuncs adapts a pair of functions to the Resource interface.
// Either function may be nil, in which case that side is a no-op.
type ResourceFuncs struct {
	AcquireFunc func(ctx context.Context) error
	ReleaseFunc func(ctx context.Context, cause error) error
}

func (r ResourceFuncs) Acquire(ctx context.Context) error {
	if r.AcquireFunc == nil {
		return nil
	}
	return r.AcquireFunc(ctx)
}

func (r ResourceFuncs) Release(ctx context.Context, cause error) error {
	if r.ReleaseFunc == nil {
		return nil
	}
	return r.ReleaseFunc(ctx, cause)
}

// TxResource bridges a commit/rollback transaction into a Resource: a
// transaction begins when the boundary starts and is committed on clean
// completion, or rolled back when any error prevails at release time.
//
// Like the Operation that owns it, a TxResource is shared across
// goroutines; each goroutine's activation gets its own transaction.
type TxResource struct {
	begin TransactionProvider

	mu     sync.Mutex
	active map[int64]Transaction
}

// NewTxResource returns a TxResource using begin as its transaction
// factory.
func NewTxResource(begin TransactionProvider) *TxResource {
	return &TxResource{
		begin:  begin,
		active: map[int64]Transaction{},
	}
}

func (r *TxResource) Acquire(ctx context.Context) error {
	tx, err := r.begin(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[goid.Get()] = tx
	return nil
}

func (r *TxResource) Release(ctx context.Context, cause error) error {
	gid := goid.Get()
	r.mu.Lock()
	tx := r.active[gid]
	delete(r.active, gid)
	r.mu.Unlock()

	if tx == nil {
		return nil
	}
	if cause != nil {
		return tx.Rollback(ctx)
	}
	return tx.Commit(ctx)
}
