package lanes

import (
	"context"
	"sync"

	"github.com/go-kit/kit/endpoint"
)

// boundedLane queues at most cap(queue) requests for a single worker.
// Submitting to a full queue fails immediately with ErrOverloaded.
type boundedLane struct {
	ep     endpoint.Endpoint
	metric *laneMetric

	queue  chan *job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBoundedLane(ep endpoint.Endpoint, size int, m *laneMetric) *boundedLane {
	return &boundedLane{
		ep:     ep,
		metric: m,
		queue:  make(chan *job, size),
	}
}

func (l *boundedLane) submit(j *job) error {
	select {
	case l.queue <- j:
		l.metric.accepted.Inc(1)
		l.metric.queued.Update(int64(len(l.queue)))
		return nil
	default:
		l.metric.shed.Inc(1)
		return ErrOverloaded
	}
}

func (l *boundedLane) start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(ctx)
}

func (l *boundedLane) run(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case j := <-l.queue:
			if ctx.Err() != nil {
				// stopping
				j.fut.set(rejection(j.req, ErrLaneStopped))
				return
			}
			l.metric.queued.Update(int64(len(l.queue)))
			call(ctx, l.ep, j)
		case <-ctx.Done():
			return
		}
	}
}

// stop waits for the running request and fails the queued ones.
func (l *boundedLane) stop() {
	l.cancel()
	l.wg.Wait()

	for {
		select {
		case j := <-l.queue:
			j.fut.set(rejection(j.req, ErrLaneStopped))
		default:
			l.metric.queued.Update(0)
			return
		}
	}
}
