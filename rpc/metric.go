package rpc

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

type ResultMetrics struct {
	Metrics map[string]string `json:"metrics"`
}

// JSONMetrics returns the metric under label, or all of them when label is
// empty.
func JSONMetrics(ctx *rpctypes.Context, label string) (*ResultMetrics, error) {
	metrics, err := env.MetricSet.JSONStrings(label)
	if err != nil {
		return nil, err
	}
	return &ResultMetrics{Metrics: metrics}, nil
}
