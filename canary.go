package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

const (
	CanaryFilename = "canary.json"
	canaryType     = "Canary"

	// ISO-8601 with an explicit numeric offset, so UTC is written as +00:00
	canaryTimeLayout = "2006-01-02T15:04:05.999999999-07:00"
)

// Canary is a point in time attestation of a remote's state. It is written to
// the generated directory, travels through the monitored computer's sync,
// backup and restore, and is read back from the restored directory.
type Canary struct {
	Storage    string
	RemoteID   string
	Computer   string
	User       string
	Timestamp  time.Time
	NumObjects int64
	TotalBytes int64
}

func NewCanary(target Target, usage Usage, now time.Time) Canary {
	return Canary{
		Storage:    target.Storage,
		RemoteID:   target.RemoteID(),
		Computer:   target.Computer,
		User:       target.User,
		Timestamp:  now.UTC(),
		NumObjects: usage.Count,
		TotalBytes: usage.Bytes,
	}
}

type canaryRecord struct {
	Type       string `json:"_type"`
	Storage    string `json:"storage"`
	RemoteID   string `json:"rclone_remote"`
	Computer   string `json:"computer"`
	Timestamp  string `json:"timestamp"`
	User       string `json:"user"`
	NumObjects int64  `json:"num_objects"`
	TotalBytes int64  `json:"total_bytes"`
}

// pointer fields let the decoder tell an absent field from a zero value
type canaryDocument struct {
	Type       *string `json:"_type"`
	Storage    *string `json:"storage"`
	RemoteID   *string `json:"rclone_remote"`
	Computer   *string `json:"computer"`
	Timestamp  *string `json:"timestamp"`
	User       *string `json:"user"`
	NumObjects *int64  `json:"num_objects"`
	TotalBytes *int64  `json:"total_bytes"`
}

func EncodeCanary(c Canary) ([]byte, error) {
	record := canaryRecord{
		Type:       canaryType,
		Storage:    c.Storage,
		RemoteID:   c.RemoteID,
		Computer:   c.Computer,
		Timestamp:  c.Timestamp.UTC().Format(canaryTimeLayout),
		User:       c.User,
		NumObjects: c.NumObjects,
		TotalBytes: c.TotalBytes,
	}

	return json.MarshalIndent(record, "", "  ")
}

// DecodeCanary parses a canary document. Anything that is not a complete
// Canary record is rejected with a *MalformedCanaryError.
func DecodeCanary(data []byte) (Canary, error) {
	var doc canaryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Canary{}, &MalformedCanaryError{Reason: "invalid json", Err: err}
	}

	if doc.Type == nil {
		return Canary{}, &MalformedCanaryError{Field: "_type", Reason: "missing"}
	}
	if *doc.Type != canaryType {
		return Canary{}, &MalformedCanaryError{Field: "_type", Reason: fmt.Sprintf("unexpected type %q", *doc.Type)}
	}

	requiredStrings := []struct {
		name  string
		value *string
	}{
		{"storage", doc.Storage},
		{"rclone_remote", doc.RemoteID},
		{"computer", doc.Computer},
		{"timestamp", doc.Timestamp},
		{"user", doc.User},
	}
	for _, field := range requiredStrings {
		if field.value == nil {
			return Canary{}, &MalformedCanaryError{Field: field.name, Reason: "missing"}
		}
	}

	requiredCounts := []struct {
		name  string
		value *int64
	}{
		{"num_objects", doc.NumObjects},
		{"total_bytes", doc.TotalBytes},
	}
	for _, field := range requiredCounts {
		if field.value == nil {
			return Canary{}, &MalformedCanaryError{Field: field.name, Reason: "missing"}
		}
		if *field.value < 0 {
			return Canary{}, &MalformedCanaryError{Field: field.name, Reason: "negative value"}
		}
	}

	timestamp, parseErr := time.Parse(time.RFC3339Nano, *doc.Timestamp)
	if parseErr != nil {
		return Canary{}, &MalformedCanaryError{Field: "timestamp", Reason: "not an ISO-8601 instant", Err: parseErr}
	}

	return Canary{
		Storage:    *doc.Storage,
		RemoteID:   *doc.RemoteID,
		Computer:   *doc.Computer,
		User:       *doc.User,
		Timestamp:  timestamp.UTC(),
		NumObjects: *doc.NumObjects,
		TotalBytes: *doc.TotalBytes,
	}, nil
}

func WriteCanaryFile(path string, c Canary) error {
	data, err := EncodeCanary(c)
	if err != nil {
		return fmt.Errorf("encoding canary: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func ReadCanaryFile(path string) (Canary, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Canary{}, fmt.Errorf("%s: %w", path, ErrObjectNotFound)
	}
	if err != nil {
		return Canary{}, err
	}

	return DecodeCanary(data)
}

// RestoreLag is the time between the creation of the restored canary and the
// creation of this cycle's generated canary. Negative values (clock skew) are
// returned as is.
func RestoreLag(generated, restored Canary) time.Duration {
	return generated.Timestamp.Sub(restored.Timestamp)
}
