package main

import "context"

type Notifier interface {
	NotifyRunResults(ctx context.Context, results RunResults) error
}
