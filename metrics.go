package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	MetricRestoreLag = "RestoreLag"
	MetricFileCount  = "FileCount"
	MetricTotalBytes = "TotalBytes"

	UnitSeconds = "Seconds"
	UnitCount   = "Count"
	UnitBytes   = "Bytes"
)

type Metric struct {
	Name  string
	Value float64
	Unit  string
}

// Dimensions identify the monitored (computer, storage, user) triple.
type Dimensions struct {
	Computer    string
	Storage     string
	StorageUser string
}

func (d Dimensions) Map() map[string]string {
	return map[string]string{
		"Computer":    d.Computer,
		"Storage":     d.Storage,
		"StorageUser": d.StorageUser,
	}
}

type Reporter interface {
	Emit(ctx context.Context, metric Metric, dims Dimensions) error
}

func RestoreLagMetric(lag time.Duration) Metric {
	return Metric{Name: MetricRestoreLag, Value: lag.Seconds(), Unit: UnitSeconds}
}

func SizeMetrics(c Canary) []Metric {
	return []Metric{
		{Name: MetricFileCount, Value: float64(c.NumObjects), Unit: UnitCount},
		{Name: MetricTotalBytes, Value: float64(c.TotalBytes), Unit: UnitBytes},
	}
}

// LogReporter only logs metrics. Used for dry runs.
type LogReporter struct {
	Logger log.FieldLogger
}

func (r *LogReporter) Emit(ctx context.Context, metric Metric, dims Dimensions) error {
	r.Logger.WithFields(log.Fields{
		"computer": dims.Computer,
		"storage":  dims.Storage,
		"user":     dims.StorageUser,
		"unit":     metric.Unit,
	}).Info(fmt.Sprintf("metric %s = %v", metric.Name, metric.Value))
	return nil
}
