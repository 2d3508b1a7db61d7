package metric

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrMetricLabelExist    = errors.New("metric label already exist")
	ErrMetricLabelNotFound = errors.New("metric label not found")
)

func NewMetricSet() *MetricSet {
	return &MetricSet{
		metrics: make(map[string]MetricItem),
	}
}

// MetricSet holds the MetricItems of a node by label.
type MetricSet struct {
	mtx     sync.RWMutex
	metrics map[string]MetricItem
}

// SetMetrics - registers item under label; an existing label is an error.
func (ms *MetricSet) SetMetrics(label string, item MetricItem) error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()

	if _, existed := ms.metrics[label]; existed {
		return fmt.Errorf("%w: %s", ErrMetricLabelExist, label)
	}
	ms.metrics[label] = item
	return nil
}

func (ms *MetricSet) HasMetrics(label string) bool {
	ms.mtx.RLock()
	_, existed := ms.metrics[label]
	ms.mtx.RUnlock()
	return existed
}

func (ms *MetricSet) GetMetrics(label string) MetricItem {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	return ms.metrics[label]
}

// Labels returns every label in sorted order.
func (ms *MetricSet) Labels() []string {
	ms.mtx.RLock()
	keys := make([]string, 0, len(ms.metrics))
	for k := range ms.metrics {
		keys = append(keys, k)
	}
	ms.mtx.RUnlock()

	sort.Strings(keys)
	return keys
}

// JSONStrings renders the item under label, or every item when label is
// empty.
func (ms *MetricSet) JSONStrings(label string) (map[string]string, error) {
	labels := []string{label}
	if label == "" {
		labels = ms.Labels()
	}

	result := make(map[string]string, len(labels))
	for _, l := range labels {
		item := ms.GetMetrics(l)
		if item == nil {
			return nil, fmt.Errorf("%w: %s", ErrMetricLabelNotFound, l)
		}
		result[l] = item.JSONString()
	}
	return result, nil
}
