package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jinzhu/configor"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "BACKUP_MONITOR"

type AppConfig struct {
	Targets     []Target      `json:"targets" yaml:"targets"`
	Remote      RemoteConfig  `json:"remote" yaml:"remote"`
	Metrics     MetricsConfig `json:"metrics" yaml:"metrics"`
	Notify      NotifyConfig  `json:"notify" yaml:"notify"`
	Concurrency int           `json:"concurrency" yaml:"concurrency" default:"1"`
	Schedule    string        `json:"schedule" yaml:"schedule"`
}

// Target is one monitored computer, storage provider and storage account.
type Target struct {
	Computer string `json:"computer" yaml:"computer" required:"true"`
	Storage  string `json:"storage" yaml:"storage" required:"true"`
	User     string `json:"user" yaml:"user" required:"true"`
}

// RemoteID names the remote configuration for the target, {storage}-{user}.
func (t Target) RemoteID() string {
	return fmt.Sprintf("%s-%s", t.Storage, t.User)
}

func (t Target) Dimensions() Dimensions {
	return Dimensions{Computer: t.Computer, Storage: t.Storage, StorageUser: t.User}
}

type RemoteConfig struct {
	Provider  string            `json:"provider" yaml:"provider" default:"rclone"`
	Base      string            `json:"base" yaml:"base" default:"backup-monitor"`
	Binary    string            `json:"binary" yaml:"binary" default:"rclone"`
	ExtraArgs []string          `json:"extra_args" yaml:"extra_args"`
	Region    string            `json:"region" yaml:"region"`
	Profile   string            `json:"profile" yaml:"profile"`
	Buckets   map[string]string `json:"buckets" yaml:"buckets"`
}

type MetricsConfig struct {
	Provider       string `json:"provider" yaml:"provider" default:"cloudwatch"`
	Namespace      string `json:"namespace" yaml:"namespace" default:"CloudberryBackup"`
	Region         string `json:"region" yaml:"region"`
	Profile        string `json:"profile" yaml:"profile"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	PushgatewayJob string `json:"pushgateway_job" yaml:"pushgateway_job" default:"backup_monitor"`
}

type NotifyConfig struct {
	Topic   string `json:"topic" yaml:"topic"`
	Region  string `json:"region" yaml:"region"`
	Profile string `json:"profile" yaml:"profile"`
}

// LoadConfig reads the configuration file. Besides the full document it
// accepts a bare JSON array of targets. Every failure is a
// *ConfigurationError.
func LoadConfig(path string) (AppConfig, error) {
	var appConfig AppConfig

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return appConfig, &ConfigurationError{Path: path, Err: readErr}
	}

	loader := configor.New(&configor.Config{ENVPrefix: envPrefix})
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		// defaults and environment only, the file is not a configor document
		if loadErr := loader.Load(&appConfig); loadErr != nil {
			return appConfig, &ConfigurationError{Path: path, Err: loadErr}
		}
		var targets []Target
		if decodeErr := json.Unmarshal(data, &targets); decodeErr != nil {
			return appConfig, &ConfigurationError{Path: path, Err: decodeErr}
		}
		appConfig.Targets = targets
	} else if loadErr := loader.Load(&appConfig, path); loadErr != nil {
		return appConfig, &ConfigurationError{Path: path, Err: loadErr}
	}

	if validateErr := appConfig.Validate(); validateErr != nil {
		return appConfig, &ConfigurationError{Path: path, Err: validateErr}
	}

	return appConfig, nil
}

func (c AppConfig) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("no targets configured")
	}
	for i, target := range c.Targets {
		if target.Computer == "" || target.Storage == "" || target.User == "" {
			return fmt.Errorf("target %d: computer, storage and user are required", i)
		}
	}

	switch c.Remote.Provider {
	case "rclone", "s3", "gcs":
	default:
		return fmt.Errorf("Unknown remote provider: %s", c.Remote.Provider)
	}

	switch c.Metrics.Provider {
	case "cloudwatch", "log":
	case "pushgateway":
		if c.Metrics.PushgatewayURL == "" {
			return errors.New("metrics.pushgateway_url is required for the pushgateway provider")
		}
	default:
		return fmt.Errorf("Unknown metrics provider: %s", c.Metrics.Provider)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	return nil
}

func (c AppConfig) TransportFromConfig(ctx context.Context, logger log.FieldLogger) (Transport, error) {
	switch c.Remote.Provider {
	case "rclone":
		return NewRcloneTransport(c.Remote.Binary, c.Remote.ExtraArgs, logger), nil
	case "s3":
		return NewS3Transport(ctx, c.Remote, logger)
	case "gcs":
		return NewGCSTransport(ctx, c.Remote, logger)
	default:
		return nil, fmt.Errorf("Unknown remote provider: %s", c.Remote.Provider)
	}
}

func (c AppConfig) ReporterFromConfig(ctx context.Context, logger log.FieldLogger) (Reporter, error) {
	switch c.Metrics.Provider {
	case "cloudwatch":
		return NewCloudWatchReporter(ctx, c.Metrics, logger)
	case "pushgateway":
		return NewPushgatewayReporter(c.Metrics, logger)
	case "log":
		return &LogReporter{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("Unknown metrics provider: %s", c.Metrics.Provider)
	}
}

// NotifierFromConfig returns nil when no SNS topic is configured.
func (c AppConfig) NotifierFromConfig(ctx context.Context) (Notifier, error) {
	if c.Notify.Topic == "" {
		return nil, nil
	}
	return NewSNSNotifier(ctx, c.Notify)
}

func (c AppConfig) ConfigStringArray() []string {
	configStrArr := make([]string, 0)
	configStrArr = append(configStrArr, fmt.Sprintf("  - Remote Provider: %s", c.Remote.Provider))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Remote Base: %s", c.Remote.Base))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Metrics Provider: %s", c.Metrics.Provider))
	configStrArr = append(configStrArr, fmt.Sprintf("  - Concurrent Targets: %d", c.Concurrency))

	if c.Notify.Topic != "" {
		configStrArr = append(configStrArr, fmt.Sprintf("  - SNSTopic: %s", c.Notify.Topic))
	}
	if c.Schedule != "" {
		configStrArr = append(configStrArr, fmt.Sprintf("  - Schedule: %s", c.Schedule))
	}

	configStrArr = append(configStrArr, "Targets To Monitor:")
	for _, target := range c.Targets {
		configStrArr = append(configStrArr, fmt.Sprintf("%+v", target))
	}

	return configStrArr
}
