package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"
)

const defaultPushgatewayJob = "backup_monitor"

// PushgatewayReporter pushes every metric as a gauge to a Prometheus
// Pushgateway, grouped by computer, storage and user so targets do not
// overwrite each other.
type PushgatewayReporter struct {
	URL    string
	Job    string
	Logger log.FieldLogger
}

func NewPushgatewayReporter(metricsConfig MetricsConfig, logger log.FieldLogger) (*PushgatewayReporter, error) {
	if metricsConfig.PushgatewayURL == "" {
		return nil, fmt.Errorf("pushgateway url is required")
	}
	job := metricsConfig.PushgatewayJob
	if job == "" {
		job = defaultPushgatewayJob
	}

	return &PushgatewayReporter{URL: metricsConfig.PushgatewayURL, Job: job, Logger: logger}, nil
}

// gaugeName turns RestoreLag + Seconds into backup_monitor_restore_lag_seconds.
func gaugeName(metric Metric) string {
	var b strings.Builder
	for i, r := range metric.Name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	name := "backup_monitor_" + strings.ToLower(b.String())
	if metric.Unit == UnitSeconds || metric.Unit == UnitBytes {
		name += "_" + strings.ToLower(metric.Unit)
	}
	return name
}

func (p *PushgatewayReporter) pusher(metric Metric, dims Dimensions) *push.Pusher {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: gaugeName(metric),
		Help: fmt.Sprintf("Backup monitor %s in %s.", metric.Name, metric.Unit),
	})
	gauge.Set(metric.Value)

	return push.New(p.URL, p.Job).
		Collector(gauge).
		Grouping("computer", dims.Computer).
		Grouping("storage", dims.Storage).
		Grouping("storage_user", dims.StorageUser)
}

func (p *PushgatewayReporter) Emit(ctx context.Context, metric Metric, dims Dimensions) error {
	p.Logger.Info(fmt.Sprintf("Pushing metric %s %s %s %s %v", dims.Computer, dims.Storage, dims.StorageUser, metric.Name, metric.Value))
	// Add only replaces metrics with the same name in the group
	if err := p.pusher(metric, dims).AddContext(ctx); err != nil {
		return &MetricsError{Metric: metric.Name, Err: err}
	}
	return nil
}
