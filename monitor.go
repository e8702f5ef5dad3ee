package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Outcome string

const (
	// RestoreLag and size metrics emitted
	OutcomeVerified Outcome = "verified"
	// no restored canary on the remote yet, only size metrics emitted
	OutcomeNoRestore Outcome = "no-restore"
	// restored canary exists but could not be decoded, nothing emitted
	OutcomeMalformed Outcome = "malformed"
	// generate or fetch failed, nothing emitted
	OutcomeFailed Outcome = "failed"
)

type CycleResult struct {
	Target       Target
	CycleID      string
	Outcome      Outcome
	Generated    *Canary
	Restored     *Canary
	RestoreLag   time.Duration
	Emitted      []Metric
	MetricErrors []error
	Err          error
}

type RunResults []CycleResult

// Unhealthy returns every result that did not verify a round trip or failed to
// emit a metric.
func (r RunResults) Unhealthy() RunResults {
	unhealthy := make(RunResults, 0)
	for _, result := range r {
		if result.Outcome != OutcomeVerified || len(result.MetricErrors) > 0 {
			unhealthy = append(unhealthy, result)
		}
	}
	return unhealthy
}

// Monitor runs canary round trips against the configured remotes.
type Monitor struct {
	Transport   Transport
	Reporter    Reporter
	RemoteBase  string
	ScratchRoot string
	Concurrency int
	Logger      log.FieldLogger

	now     func() time.Time
	cycleID func() string
}

func NewMonitor(transport Transport, reporter Reporter, logger log.FieldLogger) *Monitor {
	return &Monitor{
		Transport:   transport,
		Reporter:    reporter,
		RemoteBase:  DefaultRemoteBase,
		Concurrency: 1,
		Logger:      logger,
		now:         time.Now,
		cycleID:     uuid.NewString,
	}
}

func (m *Monitor) targetLogger(target Target) log.FieldLogger {
	return m.Logger.WithFields(log.Fields{
		"computer": target.Computer,
		"storage":  target.Storage,
		"user":     target.User,
	})
}

// GenerateCanary creates a canary from the remote's current usage, writes it
// into scratchDir and copies it to the remote generated directory. The
// returned canary is the value held in memory, not a copy read back from disk.
func (m *Monitor) GenerateCanary(ctx context.Context, target Target, scratchDir string) (Canary, error) {
	return m.generateCanary(ctx, target, scratchDir, m.targetLogger(target))
}

func (m *Monitor) generateCanary(ctx context.Context, target Target, scratchDir string, logger log.FieldLogger) (Canary, error) {
	usage, usageErr := m.Transport.RemoteUsage(ctx, target.RemoteID())
	if usageErr != nil {
		return Canary{}, fmt.Errorf("querying remote usage: %w", usageErr)
	}
	canary := NewCanary(target, usage, m.now())

	localDir := filepath.Join(scratchDir, generatedDir)
	if mkdirErr := os.MkdirAll(localDir, 0o700); mkdirErr != nil {
		return Canary{}, mkdirErr
	}
	localFile := filepath.Join(localDir, CanaryFilename)
	logger.Info(fmt.Sprintf("Writing generated canary to %s", localFile))
	if writeErr := WriteCanaryFile(localFile, canary); writeErr != nil {
		return Canary{}, writeErr
	}

	remotePath := GeneratedCanaryPath(m.RemoteBase, target)
	if copyErr := m.Transport.Copy(ctx, localFile, remotePath); copyErr != nil {
		return Canary{}, fmt.Errorf("depositing generated canary: %w", copyErr)
	}

	return canary, nil
}

// LoadRestoredCanary fetches the canary the monitored computer restored and
// synced back. Errors match ErrObjectNotFound when there is nothing to fetch
// and *MalformedCanaryError when the file is unreadable.
func (m *Monitor) LoadRestoredCanary(ctx context.Context, target Target, scratchDir string) (Canary, error) {
	return m.loadRestoredCanary(ctx, target, scratchDir, m.targetLogger(target))
}

func (m *Monitor) loadRestoredCanary(ctx context.Context, target Target, scratchDir string, logger log.FieldLogger) (Canary, error) {
	localDir := filepath.Join(scratchDir, restoredDir)
	if mkdirErr := os.MkdirAll(localDir, 0o700); mkdirErr != nil {
		return Canary{}, mkdirErr
	}

	remotePath := RestoredCanaryPath(m.RemoteBase, target)
	if fetchErr := m.Transport.Fetch(ctx, remotePath, localDir); fetchErr != nil {
		return Canary{}, fmt.Errorf("fetching restored canary: %w", fetchErr)
	}

	localFile := filepath.Join(localDir, CanaryFilename)
	logger.Info(fmt.Sprintf("Parsing restored canary from %s", localFile))
	return ReadCanaryFile(localFile)
}

// RunTarget performs one full cycle for a target. Errors never escape: they
// are logged and recorded on the result.
func (m *Monitor) RunTarget(ctx context.Context, target Target) CycleResult {
	result := CycleResult{Target: target, CycleID: m.cycleID()}
	logger := m.targetLogger(target).WithField("cycle", result.CycleID)
	logger.Info(fmt.Sprintf("Monitoring %s %s %s", target.Computer, target.Storage, target.User))
	cycleStart := time.Now()

	scratchDir, tempErr := os.MkdirTemp(m.ScratchRoot, "backup-monitor-*")
	if tempErr != nil {
		logger.Error(fmt.Sprintf("Unable to create scratch directory: %s", tempErr))
		result.Outcome = OutcomeFailed
		result.Err = tempErr
		return result
	}
	defer os.RemoveAll(scratchDir)

	generated, generateErr := m.generateCanary(ctx, target, scratchDir, logger)
	if generateErr != nil {
		logger.Error(fmt.Sprintf("Canary generation failed: %s", generateErr))
		result.Outcome = OutcomeFailed
		result.Err = generateErr
		return result
	}
	result.Generated = &generated

	restored, restoreErr := m.loadRestoredCanary(ctx, target, scratchDir, logger)
	var malformed *MalformedCanaryError
	switch {
	case restoreErr == nil:
		result.Restored = &restored
		result.RestoreLag = RestoreLag(generated, restored)
		result.Outcome = OutcomeVerified
		logger.Info(fmt.Sprintf("Restore lag %s", result.RestoreLag))
		m.emit(ctx, &result, logger, append([]Metric{RestoreLagMetric(result.RestoreLag)}, SizeMetrics(generated)...))
	case errors.Is(restoreErr, ErrObjectNotFound):
		logger.Warn(fmt.Sprintf("No restored canary yet: %s", restoreErr))
		result.Outcome = OutcomeNoRestore
		result.Err = restoreErr
		m.emit(ctx, &result, logger, SizeMetrics(generated))
	case errors.As(restoreErr, &malformed):
		logger.Error(fmt.Sprintf("Restored canary is malformed, skipping metrics: %s", restoreErr))
		result.Outcome = OutcomeMalformed
		result.Err = restoreErr
	default:
		logger.Error(fmt.Sprintf("Loading restored canary failed: %s", restoreErr))
		result.Outcome = OutcomeFailed
		result.Err = restoreErr
	}

	logger.Info(fmt.Sprintf("Cycle complete with outcome %s. Took %s", result.Outcome, time.Since(cycleStart)))
	return result
}

func (m *Monitor) emit(ctx context.Context, result *CycleResult, logger log.FieldLogger, metrics []Metric) {
	dims := result.Target.Dimensions()
	for _, metric := range metrics {
		if err := m.Reporter.Emit(ctx, metric, dims); err != nil {
			var metricsErr *MetricsError
			if !errors.As(err, &metricsErr) {
				err = &MetricsError{Metric: metric.Name, Err: err}
			}
			logger.Warn(fmt.Sprintf("Unable to emit metric: %s", err))
			result.MetricErrors = append(result.MetricErrors, err)
			continue
		}
		result.Emitted = append(result.Emitted, metric)
	}
}

// Run processes every target, in configuration order unless Concurrency
// allows several cycles at once. Results are returned in configuration order.
func (m *Monitor) Run(ctx context.Context, targets []Target) RunResults {
	results := make(RunResults, len(targets))
	concurrency := m.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	runStart := time.Now()
	if concurrency == 1 {
		for i, target := range targets {
			results[i] = m.RunTarget(ctx, target)
		}
	} else {
		semaphore := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		for i, target := range targets {
			wg.Add(1)
			semaphore <- struct{}{}
			go func(i int, target Target) {
				defer wg.Done()
				defer func() { <-semaphore }()
				results[i] = m.RunTarget(ctx, target)
			}(i, target)
		}
		wg.Wait()
	}

	m.Logger.Info(fmt.Sprintf("Monitored %d targets, %d unhealthy. Took %s",
		len(targets), len(results.Unhealthy()), time.Since(runStart)))
	return results
}
