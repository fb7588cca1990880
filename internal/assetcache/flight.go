package assetcache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Flight deduplicates concurrent generations of the same key within this
// process. All callers asking for a key while a generation is in flight
// receive the same result; the underlying work runs exactly once.
//
// The work function runs on a context detached from the first caller's
// cancellation, so a caller that gives up does not abort the generation for
// everyone still waiting. A waiter whose own context is cancelled returns
// early; the flight keeps running and its result still lands in the tiers.
type Flight struct {
	group singleflight.Group
}

// Do executes fn under the singleflight key id. The shared return reports
// whether this caller attached to a flight started by someone else.
func (f *Flight) Do(ctx context.Context, id string, fn func(ctx context.Context) ([]byte, error)) (payload []byte, shared bool, err error) {
	ch := f.group.DoChan(id, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.([]byte), res.Shared, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
