package metric

import jsoniter "github.com/json-iterator/go"

// MetricItem - one component exposes its figures through one MetricItem.
type MetricItem interface {
	JSONString() string
}

// JSONItem renders the value returned by fn on every call.
type JSONItem func() interface{}

func (fn JSONItem) JSONString() string {
	s, err := jsoniter.MarshalToString(fn())
	if err != nil {
		return "{}"
	}
	return s
}
