package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
)

// GCSTransport treats every remote id as a Google Cloud Storage bucket.
type GCSTransport struct {
	Client  *storage.Client
	Buckets map[string]string
	Logger  log.FieldLogger
}

func NewGCSTransport(ctx context.Context, remoteConfig RemoteConfig, logger log.FieldLogger) (*GCSTransport, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Error creating gcs client: %w", err)
	}

	return &GCSTransport{Client: client, Buckets: remoteConfig.Buckets, Logger: logger}, nil
}

func (g *GCSTransport) bucket(remoteID string) string {
	if bucket, ok := g.Buckets[remoteID]; ok {
		return bucket
	}
	return remoteID
}

func (g *GCSTransport) Copy(ctx context.Context, localPath string, dst RemotePath) error {
	fd, openErr := os.Open(localPath)
	if openErr != nil {
		return &TransportError{Op: "copy", Path: dst.String(), Err: openErr}
	}
	defer fd.Close()

	bucket := g.bucket(dst.Remote)
	objWriter := g.Client.Bucket(bucket).Object(dst.Key).NewWriter(ctx)
	objWriter.ContentType = "application/json"
	if _, uploadErr := io.Copy(objWriter, fd); uploadErr != nil {
		objWriter.Close()
		return &TransportError{Op: "copy", Path: dst.String(), Err: uploadErr}
	}
	if closeErr := objWriter.Close(); closeErr != nil {
		return &TransportError{Op: "copy", Path: dst.String(), Err: closeErr}
	}
	g.Logger.Info(fmt.Sprintf("Uploaded %s to gs://%s/%s", localPath, bucket, dst.Key))

	return nil
}

func (g *GCSTransport) Fetch(ctx context.Context, src RemotePath, localDir string) error {
	bucket := g.bucket(src.Remote)
	reader, readErr := g.Client.Bucket(bucket).Object(src.Key).NewReader(ctx)
	if errors.Is(readErr, storage.ErrObjectNotExist) {
		return &TransportError{Op: "fetch", Path: src.String(), Err: ErrObjectNotFound}
	}
	if readErr != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: readErr}
	}
	defer reader.Close()

	localPath := filepath.Join(localDir, filepath.Base(src.Key))
	fd, createErr := os.Create(localPath)
	if createErr != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: createErr}
	}
	defer fd.Close()

	if _, copyErr := io.Copy(fd, reader); copyErr != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: copyErr}
	}
	g.Logger.Info(fmt.Sprintf("Downloaded gs://%s/%s to %s", bucket, src.Key, localPath))

	return nil
}

func (g *GCSTransport) RemoteUsage(ctx context.Context, remoteID string) (Usage, error) {
	var usage Usage
	bucket := g.bucket(remoteID)
	objIter := g.Client.Bucket(bucket).Objects(ctx, nil)
	for {
		attrs, err := objIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Usage{}, &TransportError{Op: "size", Path: "gs://" + bucket, Err: fmt.Errorf("Bucket(%q).Objects: %w", bucket, err)}
		}
		usage.Count++
		usage.Bytes += attrs.Size
	}

	return usage, nil
}
