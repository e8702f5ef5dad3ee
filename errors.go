package main

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when a remote or local canary object does not
// exist. For the restored canary this is the normal state until the monitored
// computer completes its first round trip.
var ErrObjectNotFound = errors.New("object not found")

type MalformedCanaryError struct {
	Field  string
	Reason string
	Err    error
}

func (e *MalformedCanaryError) Error() string {
	msg := "malformed canary"
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %s", e.Err)
	}
	return msg
}

func (e *MalformedCanaryError) Unwrap() error { return e.Err }

// TransportError wraps a failed copy, fetch or usage query against a remote.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type MetricsError struct {
	Metric string
	Err    error
}

func (e *MetricsError) Error() string {
	return fmt.Sprintf("emit metric %s: %s", e.Metric, e.Err)
}

func (e *MetricsError) Unwrap() error { return e.Err }

// ConfigurationError aborts the whole run.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration: %s", e.Err)
	}
	return fmt.Sprintf("configuration %s: %s", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
