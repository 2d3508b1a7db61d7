package lanes

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/endpoint"
	abcitypes "github.com/tendermint/tendermint/abci/types"

	"github.com/kariy/starkmint/types"
)

// Dispatcher answers a single request. app.Application implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *abcitypes.Request) *abcitypes.Response
}

// MakeDispatchEndpoint adapts d to a go-kit endpoint taking and returning
// ABCI messages.
func MakeDispatchEndpoint(d Dispatcher) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(*abcitypes.Request)
		if !ok {
			return nil, fmt.Errorf("unexpected request type %T", request)
		}
		return d.Dispatch(ctx, req), nil
	}
}

// instrumentingMiddleware counts the requests a lane finished.
func instrumentingMiddleware(m *laneMetric) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (interface{}, error) {
			response, err := next(ctx, request)
			if err != nil {
				m.failed.Inc(1)
			} else {
				m.processed.Inc(1)
			}
			return response, err
		}
	}
}

// rejection is the answer to a request the lanes could not serve. Admission
// and query requests get a regular response with an overloaded code so that
// the engine does not treat the rejection as a fault; everything else gets an
// exception.
func rejection(req *abcitypes.Request, err error) *abcitypes.Response {
	switch req.Value.(type) {
	case *abcitypes.Request_CheckTx:
		return abcitypes.ToResponseCheckTx(abcitypes.ResponseCheckTx{
			Code: types.CodeTypeOverloaded,
			Log:  err.Error(),
		})
	case *abcitypes.Request_Query:
		return abcitypes.ToResponseQuery(abcitypes.ResponseQuery{
			Code: types.CodeTypeOverloaded,
			Log:  err.Error(),
		})
	default:
		return abcitypes.ToResponseException(err.Error())
	}
}

// call runs ep for j and resolves its future.
func call(ctx context.Context, ep endpoint.Endpoint, j *job) {
	response, err := ep(ctx, j.req)
	if err != nil {
		j.fut.set(rejection(j.req, err))
		return
	}
	res, ok := response.(*abcitypes.Response)
	if !ok || res == nil {
		j.fut.set(abcitypes.ToResponseException(fmt.Sprintf("unexpected response type %T", response)))
		return
	}
	j.fut.set(res)
}

type job struct {
	req *abcitypes.Request
	fut *Future
}

func newJob(req *abcitypes.Request) *job {
	return &job{req: req, fut: newFuture()}
}
