package lanes

import (
	"context"

	abcitypes "github.com/tendermint/tendermint/abci/types"
)

// Future is the pending response of a submitted request.
type Future struct {
	done chan struct{}
	res  *abcitypes.Response
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func readyFuture(res *abcitypes.Response) *Future {
	f := newFuture()
	f.set(res)
	return f
}

// set must be called exactly once.
func (f *Future) set(res *abcitypes.Response) {
	f.res = res
	close(f.done)
}

// Done is closed once the response is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Response returns the response, or nil if it is not available yet.
func (f *Future) Response() *abcitypes.Response {
	select {
	case <-f.done:
		return f.res
	default:
		return nil
	}
}

// Wait blocks until the response is available or ctx is done.
func (f *Future) Wait(ctx context.Context) (*abcitypes.Response, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
