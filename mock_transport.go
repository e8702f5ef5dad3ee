package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

type MockTransport struct {
	CopyRequests  []MockRequest
	FetchRequests []MockRequest
	UsageRequests []string

	// keyed by remote id
	usage    map[string]Usage
	usageErr map[string]error
	copyErr  map[string]error
	fetchErr map[string]error
	// restored file contents keyed by remote key
	objects map[string][]byte
	lock    sync.Mutex
}

type MockRequest struct {
	LocalPath string
	Remote    RemotePath
	Body      []byte
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		CopyRequests:  make([]MockRequest, 0),
		FetchRequests: make([]MockRequest, 0),
		UsageRequests: make([]string, 0),
		usage:         make(map[string]Usage),
		usageErr:      make(map[string]error),
		copyErr:       make(map[string]error),
		fetchErr:      make(map[string]error),
		objects:       make(map[string][]byte),
	}
}

func (t *MockTransport) SetUsage(remoteID string, usage Usage)    { t.usage[remoteID] = usage }
func (t *MockTransport) FailUsage(remoteID string, err error)     { t.usageErr[remoteID] = err }
func (t *MockTransport) FailCopy(remoteID string, err error)      { t.copyErr[remoteID] = err }
func (t *MockTransport) FailFetch(remoteID string, err error)     { t.fetchErr[remoteID] = err }
func (t *MockTransport) PutObject(remote RemotePath, body []byte) { t.objects[remote.Key] = body }

func (t *MockTransport) Copy(ctx context.Context, localPath string, dst RemotePath) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	body, _ := os.ReadFile(localPath)
	t.CopyRequests = append(t.CopyRequests, MockRequest{LocalPath: localPath, Remote: dst, Body: body})
	if err := t.copyErr[dst.Remote]; err != nil {
		return &TransportError{Op: "copy", Path: dst.String(), Err: err}
	}
	return nil
}

func (t *MockTransport) Fetch(ctx context.Context, src RemotePath, localDir string) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.FetchRequests = append(t.FetchRequests, MockRequest{LocalPath: localDir, Remote: src})
	if err := t.fetchErr[src.Remote]; err != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: err}
	}
	body, ok := t.objects[src.Key]
	if !ok {
		return &TransportError{Op: "fetch", Path: src.String(), Err: ErrObjectNotFound}
	}
	return os.WriteFile(filepath.Join(localDir, filepath.Base(src.Key)), body, 0o600)
}

func (t *MockTransport) RemoteUsage(ctx context.Context, remoteID string) (Usage, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.UsageRequests = append(t.UsageRequests, remoteID)
	if err := t.usageErr[remoteID]; err != nil {
		return Usage{}, &TransportError{Op: "size", Path: remoteID + ":", Err: err}
	}
	return t.usage[remoteID], nil
}
