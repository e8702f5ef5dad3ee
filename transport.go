package main

import (
	"context"
	"fmt"
	"path"
)

// A directory with this name is created on the remote cloud storage. Canary
// files used for monitoring live under it.
const DefaultRemoteBase = "backup-monitor"

const (
	generatedDir = "generated"
	restoredDir  = "restored"
)

// RemotePath addresses an object on a remote: Remote is the remote
// configuration (rclone remote name or bucket), Key the slash separated path
// inside it.
type RemotePath struct {
	Remote string
	Key    string
}

func (p RemotePath) String() string {
	return fmt.Sprintf("%s:/%s", p.Remote, p.Key)
}

type Usage struct {
	Count int64
	Bytes int64
}

// Transport moves canary files between the local scratch directory and the
// remote. Fetch reports a missing object with an error matching
// ErrObjectNotFound.
type Transport interface {
	Copy(ctx context.Context, localPath string, dst RemotePath) error
	Fetch(ctx context.Context, src RemotePath, localDir string) error
	RemoteUsage(ctx context.Context, remoteID string) (Usage, error)
}

func workingKey(base string, target Target) string {
	return path.Join(base, target.Computer, target.RemoteID())
}

func GeneratedCanaryPath(base string, target Target) RemotePath {
	return RemotePath{
		Remote: target.RemoteID(),
		Key:    path.Join(workingKey(base, target), generatedDir, CanaryFilename),
	}
}

func RestoredCanaryPath(base string, target Target) RemotePath {
	return RemotePath{
		Remote: target.RemoteID(),
		Key:    path.Join(workingKey(base, target), restoredDir, CanaryFilename),
	}
}
