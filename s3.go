package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"
)

type S3API interface {
	manager.UploadAPIClient
	manager.DownloadAPIClient
	s3.ListObjectsV2APIClient
}

// S3Transport treats every remote id as an S3 bucket. Buckets remaps remote
// ids to bucket names where they differ.
type S3Transport struct {
	Client  S3API
	Buckets map[string]string
	Logger  log.FieldLogger
}

func NewS3Transport(ctx context.Context, remoteConfig RemoteConfig, logger log.FieldLogger) (*S3Transport, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithSharedConfigProfile(remoteConfig.Profile),
		config.WithRegion(remoteConfig.Region))
	if err != nil {
		return nil, fmt.Errorf("Error creating s3 client: %w", err)
	}

	return &S3Transport{
		Client:  s3.NewFromConfig(cfg),
		Buckets: remoteConfig.Buckets,
		Logger:  logger,
	}, nil
}

func (s *S3Transport) bucket(remoteID string) string {
	if bucket, ok := s.Buckets[remoteID]; ok {
		return bucket
	}
	return remoteID
}

func (s *S3Transport) Copy(ctx context.Context, localPath string, dst RemotePath) error {
	fd, openErr := os.Open(localPath)
	if openErr != nil {
		return &TransportError{Op: "copy", Path: dst.String(), Err: openErr}
	}
	defer fd.Close()

	bucket := s.bucket(dst.Remote)
	uploader := manager.NewUploader(s.Client)
	_, uploadErr := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(dst.Key),
		Body:        fd,
		ContentType: aws.String("application/json"),
	})
	if uploadErr != nil {
		return &TransportError{Op: "copy", Path: dst.String(), Err: uploadErr}
	}
	s.Logger.Info(fmt.Sprintf("Uploaded %s to s3://%s/%s", localPath, bucket, dst.Key))

	return nil
}

func (s *S3Transport) Fetch(ctx context.Context, src RemotePath, localDir string) error {
	bucket := s.bucket(src.Remote)
	out, getErr := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(src.Key),
	})
	if isS3NotFound(getErr) {
		return &TransportError{Op: "fetch", Path: src.String(), Err: ErrObjectNotFound}
	}
	if getErr != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: getErr}
	}
	defer out.Body.Close()

	localPath := filepath.Join(localDir, filepath.Base(src.Key))
	fd, createErr := os.Create(localPath)
	if createErr != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: createErr}
	}
	defer fd.Close()

	if _, copyErr := io.Copy(fd, out.Body); copyErr != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: copyErr}
	}
	s.Logger.Info(fmt.Sprintf("Downloaded s3://%s/%s to %s", bucket, src.Key, localPath))

	return nil
}

func (s *S3Transport) RemoteUsage(ctx context.Context, remoteID string) (Usage, error) {
	var usage Usage
	bucket := s.bucket(remoteID)
	listParams := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	paginator := s3.NewListObjectsV2Paginator(s.Client, listParams)
	for paginator.HasMorePages() {
		currentPage, pageErr := paginator.NextPage(ctx)
		if pageErr != nil {
			return Usage{}, &TransportError{Op: "size", Path: "s3://" + bucket, Err: pageErr}
		}
		for _, object := range currentPage.Contents {
			usage.Count++
			usage.Bytes += aws.ToInt64(object.Size)
		}
	}

	return usage, nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
