package main

import (
	"context"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleMetrics(t *testing.T) {
	canary := Canary{NumObjects: 42, TotalBytes: 1048576}

	metrics := append([]Metric{RestoreLagMetric(4*time.Minute + 30*time.Second)}, SizeMetrics(canary)...)

	assert.Equal(t, []Metric{
		{Name: "RestoreLag", Value: 270, Unit: "Seconds"},
		{Name: "FileCount", Value: 42, Unit: "Count"},
		{Name: "TotalBytes", Value: 1048576, Unit: "Bytes"},
	}, metrics)
}

func TestRestoreLagMetricKeepsSubSecondPrecision(t *testing.T) {
	assert.Equal(t, 1.5, RestoreLagMetric(1500*time.Millisecond).Value)
}

func TestDimensionsMap(t *testing.T) {
	dims := Target{Computer: "study-pc", Storage: "dropbox", User: "alice"}.Dimensions()

	assert.Equal(t, map[string]string{
		"Computer":    "study-pc",
		"Storage":     "dropbox",
		"StorageUser": "alice",
	}, dims.Map())
}

func TestLogReporter(t *testing.T) {
	logger, hook := test.NewNullLogger()
	reporter := &LogReporter{Logger: logger}

	err := reporter.Emit(context.Background(), Metric{MetricFileCount, 42, UnitCount}, Dimensions{Computer: "study-pc", Storage: "dropbox", StorageUser: "alice"})

	assert.Nil(t, err)
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Equal(t, "metric FileCount = 42", entry.Message)
	assert.Equal(t, "study-pc", entry.Data["computer"])
	assert.Equal(t, "Count", entry.Data["unit"])
}
