package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// rclone exit codes, see https://rclone.org/docs/#exit-code
const (
	rcloneExitDirNotFound  = 3
	rcloneExitFileNotFound = 4
)

type commandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// commandRunner only returns an error when the command could not be run at
// all. A non zero exit status is reported through ExitCode.
type commandRunner func(ctx context.Context, name string, args ...string) (commandResult, error)

func execCommand(ctx context.Context, name string, args ...string) (commandResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := commandResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return result, runErr
}

// RcloneTransport shells out to rclone. Every remote id must exist as a
// configured rclone remote.
type RcloneTransport struct {
	Binary    string
	ExtraArgs []string
	Logger    log.FieldLogger
	run       commandRunner
}

func NewRcloneTransport(binary string, extraArgs []string, logger log.FieldLogger) *RcloneTransport {
	if binary == "" {
		binary = "rclone"
	}
	return &RcloneTransport{
		Binary:    binary,
		ExtraArgs: extraArgs,
		Logger:    logger,
		run:       execCommand,
	}
}

func (r *RcloneTransport) rclone(ctx context.Context, args ...string) (commandResult, error) {
	args = append(args, r.ExtraArgs...)
	r.Logger.Debug(fmt.Sprintf("running %s %s", r.Binary, strings.Join(args, " ")))
	return r.run(ctx, r.Binary, args...)
}

func (r *RcloneTransport) Copy(ctx context.Context, localPath string, dst RemotePath) error {
	r.Logger.Info(fmt.Sprintf("rclone copy %s to %s", localPath, dst))
	result, err := r.rclone(ctx, "copyto", localPath, dst.String())
	if err != nil {
		return &TransportError{Op: "copy", Path: dst.String(), Err: err}
	}
	if result.ExitCode != 0 {
		return &TransportError{Op: "copy", Path: dst.String(), Err: exitError(result)}
	}

	return nil
}

func (r *RcloneTransport) Fetch(ctx context.Context, src RemotePath, localDir string) error {
	r.Logger.Info(fmt.Sprintf("rclone copy %s to %s", src, localDir))
	result, err := r.rclone(ctx, "copy", src.String(), localDir)
	if err != nil {
		return &TransportError{Op: "fetch", Path: src.String(), Err: err}
	}

	switch result.ExitCode {
	case 0:
	case rcloneExitDirNotFound, rcloneExitFileNotFound:
		return &TransportError{Op: "fetch", Path: src.String(), Err: ErrObjectNotFound}
	default:
		return &TransportError{Op: "fetch", Path: src.String(), Err: exitError(result)}
	}

	// rclone copy of a missing single file can still exit 0 with nothing copied
	localFile := filepath.Join(localDir, filepath.Base(src.Key))
	if _, statErr := os.Stat(localFile); errors.Is(statErr, os.ErrNotExist) {
		return &TransportError{Op: "fetch", Path: src.String(), Err: ErrObjectNotFound}
	}

	return nil
}

type rcloneSize struct {
	Count *int64 `json:"count"`
	Bytes *int64 `json:"bytes"`
}

func (r *RcloneTransport) RemoteUsage(ctx context.Context, remoteID string) (Usage, error) {
	remote := remoteID + ":"
	result, err := r.rclone(ctx, "size", remote, "--json")
	if err != nil {
		return Usage{}, &TransportError{Op: "size", Path: remote, Err: err}
	}
	if result.ExitCode != 0 {
		return Usage{}, &TransportError{Op: "size", Path: remote, Err: exitError(result)}
	}

	var size rcloneSize
	if decodeErr := json.Unmarshal(result.Stdout, &size); decodeErr != nil {
		return Usage{}, &TransportError{Op: "size", Path: remote, Err: fmt.Errorf("parsing rclone output: %w", decodeErr)}
	}
	if size.Count == nil || size.Bytes == nil {
		return Usage{}, &TransportError{Op: "size", Path: remote, Err: fmt.Errorf("rclone output missing count or bytes: %s", result.Stdout)}
	}

	return Usage{Count: *size.Count, Bytes: *size.Bytes}, nil
}

func exitError(result commandResult) error {
	return fmt.Errorf("exit status %d: %s", result.ExitCode, strings.TrimSpace(string(result.Stderr)))
}
