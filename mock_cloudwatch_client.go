package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

type MockCloudWatchClient struct {
	PutRequests []*cloudwatch.PutMetricDataInput
	Err         error
}

func NewMockCloudWatchClient() *MockCloudWatchClient {
	return &MockCloudWatchClient{
		PutRequests: make([]*cloudwatch.PutMetricDataInput, 0),
	}
}

func (c *MockCloudWatchClient) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.PutRequests = append(c.PutRequests, params)
	if c.Err != nil {
		return nil, c.Err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}
