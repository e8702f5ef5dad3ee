package main

import (
	"time"

	"github.com/go-co-op/gocron"
)

// newRunScheduler registers run on the cron expression. Runs never overlap.
func newRunScheduler(cronExpr string, run func()) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Cron(cronExpr).SingletonMode().Do(run); err != nil {
		return nil, err
	}

	return scheduler, nil
}
