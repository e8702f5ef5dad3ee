package main

import (
	"context"
	"sync"
)

type MockReporter struct {
	Emitted []MockEmit
	// metric names that fail to emit
	failing map[string]error
	lock    sync.Mutex
}

type MockEmit struct {
	Metric     Metric
	Dimensions Dimensions
}

func NewMockReporter() *MockReporter {
	return &MockReporter{
		Emitted: make([]MockEmit, 0),
		failing: make(map[string]error),
	}
}

func (r *MockReporter) Fail(metricName string, err error) { r.failing[metricName] = err }

func (r *MockReporter) Emit(ctx context.Context, metric Metric, dims Dimensions) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.failing[metric.Name]; err != nil {
		return err
	}
	r.Emitted = append(r.Emitted, MockEmit{Metric: metric, Dimensions: dims})
	return nil
}

// ForComputer returns the metrics emitted for one computer.
func (r *MockReporter) ForComputer(computer string) []Metric {
	r.lock.Lock()
	defer r.lock.Unlock()
	metrics := make([]Metric, 0)
	for _, emit := range r.Emitted {
		if emit.Dimensions.Computer == computer {
			metrics = append(metrics, emit.Metric)
		}
	}
	return metrics
}
