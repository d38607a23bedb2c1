package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

// FaultyTxRunner wraps a real runner and fails the next FailCommits transactions after
// their body succeeded. The failure is returned from inside the delegate transaction,
// so every write the body made is rolled back.
type FaultyTxRunner struct {
	Delegate    aggregates.TxRunner
	FailCommits int
	Err         error

	mu        sync.Mutex
	committed int
	failed    int
}

var _ aggregates.TxRunner = (*FaultyTxRunner)(nil)

func (r *FaultyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	body := func(dbc dbctx.Context) error {
		if err := fn(dbc); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.failed < r.FailCommits {
			r.failed++
			return r.Err
		}
		return nil
	}

	var err error
	if r.Delegate != nil {
		err = r.Delegate.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}
	if err == nil {
		r.mu.Lock()
		r.committed++
		r.mu.Unlock()
	}
	return err
}

// Counts reports how many transactions committed and how many were failed on purpose.
func (r *FaultyTxRunner) Counts() (committed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed, r.failed
}
