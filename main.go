package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func defaultHome() string {
	if home := os.Getenv("BACKUP_MONITOR_HOME"); home != "" {
		return home
	}
	return filepath.Join(os.Getenv("HOME"), "backup_monitor")
}

// printCanary writes a fresh canary for target to w without depositing it.
func printCanary(ctx context.Context, transport Transport, target Target, w io.Writer, now time.Time) error {
	usage, err := transport.RemoteUsage(ctx, target.RemoteID())
	if err != nil {
		return err
	}
	data, err := EncodeCanary(NewCanary(target, usage, now))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printCanaryTransport uses the configured transport, or plain rclone when
// there is no configuration file.
func printCanaryTransport(ctx context.Context, configFilePath string, logger log.FieldLogger) (Transport, error) {
	appConfig, err := LoadConfig(configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		return NewRcloneTransport("rclone", nil, logger), nil
	}
	if err != nil {
		return nil, err
	}
	return appConfig.TransportFromConfig(ctx, logger)
}

func main() {
	// optional, a missing .env is fine
	_ = godotenv.Load()

	homeDir := flag.String("home", defaultHome(), "Backup monitor home directory")
	configFilePath := flag.String("configfile", "", "Configuration File Path (default {home}/conf/backup_monitor.json)")
	schedule := flag.String("schedule", "", "Cron expression, run continuously instead of once")
	debug := flag.Bool("debug", false, "Debug logging")
	printOnly := flag.Bool("print-canary", false, "Print a canary for -computer/-storage/-user and exit")
	computer := flag.String("computer", "", "Computer name for -print-canary")
	storage := flag.String("storage", "", "Storage provider for -print-canary")
	user := flag.String("user", "", "Storage user for -print-canary")
	flag.Parse()

	logger, logErr := newLogger(filepath.Join(*homeDir, "logs"), *debug)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Unable to create log directory: %s\n", logErr)
		os.Exit(1)
	}

	if *configFilePath == "" {
		*configFilePath = filepath.Join(*homeDir, "conf", "backup_monitor.json")
	}

	ctx := context.Background()

	if *printOnly {
		target := Target{Computer: *computer, Storage: *storage, User: *user}
		if target.Computer == "" || target.Storage == "" || target.User == "" {
			logger.Fatal("-print-canary requires -computer, -storage and -user")
		}
		transport, transportErr := printCanaryTransport(ctx, *configFilePath, logger)
		if transportErr != nil {
			logger.WithError(transportErr).Fatal("Unable to create transport")
		}
		if err := printCanary(ctx, transport, target, os.Stdout, time.Now()); err != nil {
			logger.WithError(err).Fatal("Unable to generate canary")
		}
		return
	}

	appConfig, configErr := LoadConfig(*configFilePath)
	if configErr != nil {
		logger.WithError(configErr).Fatal("Failed to load configuration")
	}
	if *schedule != "" {
		appConfig.Schedule = *schedule
	}

	logger.Info("Backup monitor configuration:")
	for _, line := range appConfig.ConfigStringArray() {
		logger.Info(line)
	}

	transport, transportErr := appConfig.TransportFromConfig(ctx, logger)
	if transportErr != nil {
		logger.WithError(transportErr).Fatal("Unable to create transport")
	}
	reporter, reporterErr := appConfig.ReporterFromConfig(ctx, logger)
	if reporterErr != nil {
		logger.WithError(reporterErr).Fatal("Unable to create metrics reporter")
	}
	notifier, notifierErr := appConfig.NotifierFromConfig(ctx)
	if notifierErr != nil {
		logger.WithError(notifierErr).Fatal("Unable to create notifier")
	}

	monitor := NewMonitor(transport, reporter, logger)
	monitor.RemoteBase = appConfig.Remote.Base
	monitor.Concurrency = appConfig.Concurrency

	runOnce := func() {
		results := monitor.Run(ctx, appConfig.Targets)
		if notifier != nil {
			if err := notifier.NotifyRunResults(ctx, results); err != nil {
				logger.WithError(err).Warn("Unable to publish run notification")
			}
		}
	}

	if appConfig.Schedule == "" {
		runOnce()
		return
	}

	scheduler, scheduleErr := newRunScheduler(appConfig.Schedule, runOnce)
	if scheduleErr != nil {
		logger.WithError(scheduleErr).Fatal(fmt.Sprintf("Invalid schedule %q", appConfig.Schedule))
	}
	logger.Info(fmt.Sprintf("Running on schedule %s", appConfig.Schedule))
	scheduler.StartBlocking()
}
