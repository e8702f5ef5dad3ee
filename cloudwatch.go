package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	log "github.com/sirupsen/logrus"
)

const DefaultCloudWatchNamespace = "CloudberryBackup"

type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchReporter puts one datum per metric into a CloudWatch namespace.
type CloudWatchReporter struct {
	Client    CloudWatchAPI
	Namespace string
	Logger    log.FieldLogger
	now       func() time.Time
}

func NewCloudWatchReporter(ctx context.Context, metricsConfig MetricsConfig, logger log.FieldLogger) (*CloudWatchReporter, error) {
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(metricsConfig.Region),
	}
	if metricsConfig.Profile != "" {
		optFns = append(optFns, config.WithSharedConfigProfile(metricsConfig.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("Error creating cloudwatch client: %w", err)
	}
	// LocalStack and similar
	if metricsConfig.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(metricsConfig.Endpoint)
	}

	namespace := metricsConfig.Namespace
	if namespace == "" {
		namespace = DefaultCloudWatchNamespace
	}

	return &CloudWatchReporter{
		Client:    cloudwatch.NewFromConfig(cfg),
		Namespace: namespace,
		Logger:    logger,
		now:       time.Now,
	}, nil
}

func (c *CloudWatchReporter) Emit(ctx context.Context, metric Metric, dims Dimensions) error {
	c.Logger.Info(fmt.Sprintf("Putting cloudwatch metric %s %s %s %s %v %s",
		dims.Computer, dims.Storage, dims.StorageUser, metric.Name, metric.Value, metric.Unit))

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.Namespace),
		MetricData: []types.MetricDatum{c.convertToDatum(metric, dims)},
	}
	out, err := c.Client.PutMetricData(ctx, input)
	if err != nil {
		return &MetricsError{Metric: metric.Name, Err: err}
	}
	c.Logger.Debug(fmt.Sprintf("Cloudwatch put metric response: %+v", out))

	return nil
}

func (c *CloudWatchReporter) convertToDatum(metric Metric, dims Dimensions) types.MetricDatum {
	datum := types.MetricDatum{
		MetricName: aws.String(metric.Name),
		Value:      aws.Float64(metric.Value),
		Unit:       mapUnit(metric.Unit),
		Dimensions: []types.Dimension{
			{Name: aws.String("Computer"), Value: aws.String(dims.Computer)},
			{Name: aws.String("Storage"), Value: aws.String(dims.Storage)},
			{Name: aws.String("StorageUser"), Value: aws.String(dims.StorageUser)},
		},
	}
	if c.now != nil {
		datum.Timestamp = aws.Time(c.now())
	}

	return datum
}

func mapUnit(unit string) types.StandardUnit {
	switch unit {
	case UnitSeconds:
		return types.StandardUnitSeconds
	case UnitCount:
		return types.StandardUnitCount
	case UnitBytes:
		return types.StandardUnitBytes
	default:
		return types.StandardUnitNone
	}
}
