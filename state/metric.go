package state

import (
	jsoniter "github.com/json-iterator/go"
	metrics "github.com/rcrowley/go-metrics"
)

// blockMetric records per-block figures in a go-metrics registry and renders
// them for the metric set.
type blockMetric struct {
	height      metrics.Gauge
	txs         metrics.Counter
	blockTxs    metrics.Histogram
	blockMillis metrics.Histogram
	tps         metrics.GaugeFloat64
}

func newBlockMetric(r metrics.Registry) *blockMetric {
	return &blockMetric{
		height:      metrics.GetOrRegisterGauge("block/height", r),
		txs:         metrics.GetOrRegisterCounter("block/txs", r),
		blockTxs:    metrics.GetOrRegisterHistogram("block/txs_per_block", r, metrics.NewUniformSample(1028)),
		blockMillis: metrics.GetOrRegisterHistogram("block/duration_ms", r, metrics.NewUniformSample(1028)),
		tps:         metrics.GetOrRegisterGaugeFloat64("block/tps", r),
	}
}

func (bm *blockMetric) MarkBlock(txs uint64, millis int64, tps float64) {
	bm.txs.Inc(int64(txs))
	bm.blockTxs.Update(int64(txs))
	bm.blockMillis.Update(millis)
	bm.tps.Update(tps)
}

func (bm *blockMetric) MarkHeight(height uint64) {
	bm.height.Update(int64(height))
}

type blockMetricJSON struct {
	Height       int64   `json:"height"`
	TotalTxs     int64   `json:"total_txs"`
	Blocks       int64   `json:"blocks"`
	MeanBlockTxs float64 `json:"mean_block_txs"`
	MeanBlockMs  float64 `json:"mean_block_ms"`
	MaxBlockMs   int64   `json:"max_block_ms"`
	LastBlockTPS float64 `json:"last_block_tps"`
}

// JSONString implements metric.MetricItem
func (bm *blockMetric) JSONString() string {
	s, _ := jsoniter.MarshalToString(blockMetricJSON{
		Height:       bm.height.Value(),
		TotalTxs:     bm.txs.Count(),
		Blocks:       bm.blockTxs.Count(),
		MeanBlockTxs: bm.blockTxs.Mean(),
		MeanBlockMs:  bm.blockMillis.Mean(),
		MaxBlockMs:   bm.blockMillis.Max(),
		LastBlockTPS: bm.tps.Value(),
	})
	return s
}
