package host

import (
	"context"
	"fmt"

	"github.com/chain/txvm/errors"
)

// Follow calls f on every committed invocation above height after, in height order:
// first the journal backlog, then each new invocation as it commits.
// It returns when ctx is canceled, when f fails, or after Close.
func (r *Runtime) Follow(ctx context.Context, after uint64, f func(context.Context, *Invocation) error) error {
	// Subscribe before reading the backlog so nothing committed in between is missed.
	rd := r.w.Reader()
	defer rd.Dispose()

	backlog, err := listInvocations(ctx, r.backend, after, 0)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return errors.Wrapf(err, "reading backlog after %d", after)
	}

	last := after
	process := func(inv *Invocation) error {
		if inv.Height != last+1 {
			return fmt.Errorf("missing invocation %d", last+1)
		}
		if err := f(ctx, inv); err != nil {
			return errors.Wrapf(err, "following invocation %d", inv.Height)
		}
		last = inv.Height
		return nil
	}

	for _, inv := range backlog {
		if err = process(inv); err != nil {
			return err
		}
	}

	for {
		x, ok := rd.Read(ctx)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrClosed
		}
		inv := x.(*Invocation)
		if inv.Height <= last {
			continue
		}
		if err = process(inv); err != nil {
			return err
		}
	}
}

// WaitFor returns the invocation at height, blocking until it commits.
func (r *Runtime) WaitFor(ctx context.Context, height uint64) (*Invocation, error) {
	if height == 0 {
		return nil, errors.New("no invocation at height 0")
	}
	var found *Invocation
	stop := errors.New("stop")
	err := r.Follow(ctx, height-1, func(_ context.Context, inv *Invocation) error {
		found = inv
		return stop
	})
	if found != nil {
		return found, nil
	}
	return nil, err
}
