package lanes

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/ratelimit"
	metrics "github.com/rcrowley/go-metrics"
	abcitypes "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"golang.org/x/time/rate"

	cfg "github.com/kariy/starkmint/config"
	"github.com/kariy/starkmint/libs/metric"
)

// Topology schedules every ABCI request on the lane of its kind:
//
//   - consensus: unbounded, sequential, never shed
//   - mempool: bounded, shed when full
//   - info: bounded, shed when full, rate limited
//   - snapshot: answered inline
//
// All lanes share one Dispatcher.
type Topology struct {
	service.BaseService

	config *cfg.LanesConfig

	consensus *sequentialLane
	mempool   *boundedLane
	info      *boundedLane
	snapshot  endpoint.Endpoint

	metric *lanesMetric

	mtx       sync.RWMutex
	accepting bool
}

// NewTopology builds the lanes over d. Lane counters are registered in r; a
// nil r gets a private registry.
func NewTopology(config *cfg.LanesConfig, d Dispatcher, r metrics.Registry) *Topology {
	if r == nil {
		r = metrics.NewRegistry()
	}
	lm := newLanesMetric(r)
	dispatch := MakeDispatchEndpoint(d)

	limiter := rate.NewLimiter(rate.Limit(config.InfoRateLimit), config.InfoRateBurst)
	infoEndpoint := endpoint.Chain(
		instrumentingMiddleware(lm.lane(LaneInfo)),
		ratelimit.NewDelayingLimiter(limiter),
	)(dispatch)

	t := &Topology{
		config:    config,
		consensus: newSequentialLane(instrumentingMiddleware(lm.lane(LaneConsensus))(dispatch), lm.lane(LaneConsensus)),
		mempool:   newBoundedLane(instrumentingMiddleware(lm.lane(LaneMempool))(dispatch), config.MempoolQueueSize, lm.lane(LaneMempool)),
		info:      newBoundedLane(infoEndpoint, config.InfoQueueSize, lm.lane(LaneInfo)),
		snapshot:  instrumentingMiddleware(lm.lane(LaneSnapshot))(dispatch),
		metric:    lm,
	}
	t.BaseService = *service.NewBaseService(log.NewNopLogger(), "LaneTopology", t)
	return t
}

// OnStart implements service.Service by starting one worker per queued lane.
func (t *Topology) OnStart() error {
	t.consensus.start()
	t.mempool.start()
	t.info.start()

	t.mtx.Lock()
	t.accepting = true
	t.mtx.Unlock()
	return nil
}

// OnStop implements service.Service. Requests still queued are answered
// with ErrLaneStopped.
func (t *Topology) OnStop() {
	t.mtx.Lock()
	t.accepting = false
	t.mtx.Unlock()

	t.consensus.stop()
	t.mempool.stop()
	t.info.stop()
}

// Metric exposes the per-lane counters for the metric set.
func (t *Topology) Metric() metric.MetricItem {
	return t.metric
}

// Submit schedules req and returns without waiting for its response.
// Shed requests get an already resolved Future.
func (t *Topology) Submit(ctx context.Context, req *abcitypes.Request) *Future {
	lane := Classify(req)
	if lane == LaneNone {
		if _, ok := req.Value.(*abcitypes.Request_Flush); ok {
			return readyFuture(abcitypes.ToResponseFlush())
		}
		return readyFuture(abcitypes.ToResponseException(fmt.Sprintf("unknown request %T", req.Value)))
	}

	t.mtx.RLock()
	defer t.mtx.RUnlock()

	if !t.accepting {
		return readyFuture(rejection(req, ErrNotRunning))
	}

	j := newJob(req)
	var err error
	switch lane {
	case LaneConsensus:
		err = t.consensus.submit(j)
	case LaneMempool:
		err = t.mempool.submit(j)
	case LaneInfo:
		err = t.info.submit(j)
	case LaneSnapshot:
		t.metric.lane(LaneSnapshot).accepted.Inc(1)
		call(ctx, t.snapshot, j)
	}
	if err != nil {
		t.Logger.Debug("shed request", "lane", lane, "req", fmt.Sprintf("%T", req.Value), "err", err)
		return readyFuture(rejection(req, err))
	}
	return j.fut
}

// Handle submits req and waits for its response.
func (t *Topology) Handle(ctx context.Context, req *abcitypes.Request) (*abcitypes.Response, error) {
	return t.Submit(ctx, req).Wait(ctx)
}
