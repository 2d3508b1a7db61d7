package lanes

import (
	"context"
	"sync"

	"github.com/go-kit/kit/endpoint"
	"github.com/tendermint/tendermint/libs/clist"
)

// sequentialLane runs every request exactly once, in arrival order, on a
// single worker. Its queue is unbounded and nothing is ever shed.
type sequentialLane struct {
	ep     endpoint.Endpoint
	metric *laneMetric

	queue *clist.CList
	quit  chan struct{}
	wg    sync.WaitGroup
}

func newSequentialLane(ep endpoint.Endpoint, m *laneMetric) *sequentialLane {
	return &sequentialLane{
		ep:     ep,
		metric: m,
		queue:  clist.New(),
	}
}

func (l *sequentialLane) submit(j *job) error {
	l.metric.accepted.Inc(1)
	l.queue.PushBack(j)
	l.metric.queued.Update(int64(l.queue.Len()))
	return nil
}

func (l *sequentialLane) start() {
	l.quit = make(chan struct{})
	l.wg.Add(1)
	go l.run()
}

func (l *sequentialLane) run() {
	defer l.wg.Done()

	// requests run to completion even if their submitter went away
	ctx := context.Background()
	for {
		select {
		case <-l.queue.WaitChan():
		case <-l.quit:
			return
		}
		select {
		case <-l.quit:
			return
		default:
		}

		e := l.queue.Front()
		if e == nil {
			continue
		}
		l.queue.Remove(e)
		e.DetachPrev()
		l.metric.queued.Update(int64(l.queue.Len()))

		call(ctx, l.ep, e.Value.(*job))
	}
}

// stop waits for the running request and fails the queued ones.
func (l *sequentialLane) stop() {
	close(l.quit)
	l.wg.Wait()

	for e := l.queue.Front(); e != nil; e = l.queue.Front() {
		l.queue.Remove(e)
		e.DetachPrev()
		j := e.Value.(*job)
		j.fut.set(rejection(j.req, ErrLaneStopped))
	}
	l.metric.queued.Update(0)
}
