package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func NewSNSNotifier(ctx context.Context, notifyConfig NotifyConfig) (Notifier, error) {
	var notifier Notifier

	cfg, cfgErr := config.LoadDefaultConfig(ctx,
		config.WithSharedConfigProfile(notifyConfig.Profile),
		config.WithRegion(notifyConfig.Region))

	if cfgErr != nil {
		return notifier, cfgErr
	}
	snsClient := &SNSClient{sns.NewFromConfig(cfg)}
	notifier = &SNSNotifier{Client: snsClient, Topic: notifyConfig.Topic}

	return notifier, nil
}

type SNSClientIface interface {
	PublishMessage(ctx context.Context, msg *sns.PublishInput) error
}

type SNSClient struct {
	Client *sns.Client
}

func (s *SNSClient) PublishMessage(ctx context.Context, msg *sns.PublishInput) error {
	_, publishErr := s.Client.Publish(ctx, msg)
	return publishErr
}

type SNSNotifier struct {
	Client SNSClientIface
	Topic  string
}

// NotifyRunResults publishes one message listing every target that did not
// complete a verified round trip. Nothing is sent when all targets verified.
func (s *SNSNotifier) NotifyRunResults(ctx context.Context, results RunResults) error {
	unhealthy := results.Unhealthy()

	// if every round trip verified we dont need to send any notification
	if len(unhealthy) == 0 {
		return nil
	}

	// TODO: this has a maximum message size of 256KB, need to account for that
	notificationBody := ""
	for _, result := range unhealthy {
		notificationBody += fmt.Sprintf(
			"Computer: %s\nStorage: %s\nUser: %s\nOutcome: %s\nError: %v\n",
			result.Target.Computer,
			result.Target.Storage,
			result.Target.User,
			result.Outcome,
			result.Err,
		)
		for _, metricErr := range result.MetricErrors {
			notificationBody += fmt.Sprintf("Metric Error: %s\n", metricErr)
		}
		notificationBody += "\n\n"
	}

	snsPublishReq := &sns.PublishInput{
		Message:  aws.String(notificationBody),
		TopicArn: aws.String(s.Topic),
		Subject:  aws.String(fmt.Sprintf("Backup monitor: %d of %d targets unhealthy", len(unhealthy), len(results))),
	}
	publishErr := s.Client.PublishMessage(ctx, snsPublishReq)

	return publishErr
}
