package lanes

import (
	jsoniter "github.com/json-iterator/go"
	metrics "github.com/rcrowley/go-metrics"
)

type laneMetric struct {
	accepted  metrics.Counter
	shed      metrics.Counter
	processed metrics.Counter
	failed    metrics.Counter
	queued    metrics.Gauge
}

func newLaneMetric(lane Lane, r metrics.Registry) *laneMetric {
	prefix := "lanes/" + lane.String() + "/"
	return &laneMetric{
		accepted:  metrics.GetOrRegisterCounter(prefix+"accepted", r),
		shed:      metrics.GetOrRegisterCounter(prefix+"shed", r),
		processed: metrics.GetOrRegisterCounter(prefix+"processed", r),
		failed:    metrics.GetOrRegisterCounter(prefix+"failed", r),
		queued:    metrics.GetOrRegisterGauge(prefix+"queued", r),
	}
}

type laneMetricJSON struct {
	Accepted  int64 `json:"accepted"`
	Shed      int64 `json:"shed"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Queued    int64 `json:"queued"`
}

func (lm *laneMetric) snapshot() laneMetricJSON {
	return laneMetricJSON{
		Accepted:  lm.accepted.Count(),
		Shed:      lm.shed.Count(),
		Processed: lm.processed.Count(),
		Failed:    lm.failed.Count(),
		Queued:    lm.queued.Value(),
	}
}

// lanesMetric is the metric.MetricItem of the whole topology.
type lanesMetric struct {
	lanes map[Lane]*laneMetric
}

func newLanesMetric(r metrics.Registry) *lanesMetric {
	lm := &lanesMetric{lanes: make(map[Lane]*laneMetric)}
	for _, l := range []Lane{LaneConsensus, LaneMempool, LaneInfo, LaneSnapshot} {
		lm.lanes[l] = newLaneMetric(l, r)
	}
	return lm
}

func (lm *lanesMetric) lane(l Lane) *laneMetric {
	return lm.lanes[l]
}

func (lm *lanesMetric) JSONString() string {
	out := make(map[string]laneMetricJSON, len(lm.lanes))
	for l, m := range lm.lanes {
		out[l.String()] = m.snapshot()
	}
	s, _ := jsoniter.MarshalToString(out)
	return s
}
