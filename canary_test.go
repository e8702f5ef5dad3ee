package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockCanary() Canary {
	return Canary{
		Storage:    "dropbox",
		RemoteID:   "dropbox-alice",
		Computer:   "study-pc",
		User:       "alice",
		Timestamp:  time.Date(2024, 1, 2, 10, 0, 0, 123456789, time.UTC),
		NumObjects: 42,
		TotalBytes: 1048576,
	}
}

func validCanaryDocument() map[string]interface{} {
	return map[string]interface{}{
		"_type":         "Canary",
		"storage":       "dropbox",
		"rclone_remote": "dropbox-alice",
		"computer":      "study-pc",
		"timestamp":     "2024-01-02T09:55:30.123456+00:00",
		"user":          "alice",
		"num_objects":   42,
		"total_bytes":   1048576,
	}
}

func TestCanaryRoundTrip(t *testing.T) {
	canaries := []Canary{
		mockCanary(),
		{Timestamp: time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC)},
		{
			Storage:    "onedrive",
			RemoteID:   "onedrive-bob",
			Computer:   "laptop",
			User:       "bob",
			Timestamp:  time.Date(2030, 6, 1, 0, 0, 0, 1000, time.UTC),
			NumObjects: 1 << 40,
			TotalBytes: 1 << 62,
		},
	}

	for _, canary := range canaries {
		encoded, encodeErr := EncodeCanary(canary)
		require.NoError(t, encodeErr)

		decoded, decodeErr := DecodeCanary(encoded)
		require.NoError(t, decodeErr)
		assert.Equal(t, canary, decoded)
		assert.True(t, canary.Timestamp.Equal(decoded.Timestamp))
	}
}

func TestEncodeCanaryFormat(t *testing.T) {
	encoded, encodeErr := EncodeCanary(mockCanary())
	require.NoError(t, encodeErr)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &doc))
	assert.Equal(t, "Canary", doc["_type"])
	assert.Equal(t, "dropbox-alice", doc["rclone_remote"])
	assert.Equal(t, "2024-01-02T10:00:00.123456789+00:00", doc["timestamp"])
	assert.EqualValues(t, 42, doc["num_objects"])
	assert.EqualValues(t, 1048576, doc["total_bytes"])
	assert.Len(t, doc, 8)
}

func TestEncodeCanaryConvertsToUTC(t *testing.T) {
	canary := mockCanary()
	canary.Timestamp = time.Date(2024, 1, 2, 12, 0, 0, 0, time.FixedZone("EET", 2*60*60))

	encoded, encodeErr := EncodeCanary(canary)
	require.NoError(t, encodeErr)
	assert.Contains(t, string(encoded), `"timestamp": "2024-01-02T10:00:00+00:00"`)
}

func TestDecodeCanaryAcceptsPythonIsoformat(t *testing.T) {
	data, _ := json.Marshal(validCanaryDocument())

	canary, decodeErr := DecodeCanary(data)

	require.NoError(t, decodeErr)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 55, 30, 123456000, time.UTC), canary.Timestamp)
	assert.Equal(t, time.UTC, canary.Timestamp.Location())
	assert.Equal(t, "dropbox-alice", canary.RemoteID)
	assert.Equal(t, int64(42), canary.NumObjects)
}

func TestDecodeCanaryNormalizesOffset(t *testing.T) {
	doc := validCanaryDocument()
	doc["timestamp"] = "2024-01-02T11:55:30+02:00"
	data, _ := json.Marshal(doc)

	canary, decodeErr := DecodeCanary(data)

	require.NoError(t, decodeErr)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 55, 30, 0, time.UTC), canary.Timestamp)
}

func TestDecodeCanaryMissingField(t *testing.T) {
	fields := []string{"_type", "storage", "rclone_remote", "computer", "timestamp", "user", "num_objects", "total_bytes"}

	for _, field := range fields {
		t.Run(field, func(t *testing.T) {
			doc := validCanaryDocument()
			delete(doc, field)
			data, _ := json.Marshal(doc)

			_, decodeErr := DecodeCanary(data)

			var malformed *MalformedCanaryError
			require.True(t, errors.As(decodeErr, &malformed), "expected MalformedCanaryError, got %v", decodeErr)
			assert.Equal(t, field, malformed.Field)
		})
	}
}

func TestDecodeCanaryRejects(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value interface{}
	}{
		{"not iso timestamp", "timestamp", "yesterday at noon"},
		{"timestamp without offset", "timestamp", "2024-01-02T09:55:30"},
		{"timestamp wrong type", "timestamp", 1704189330},
		{"other type discriminator", "_type", "Manifest"},
		{"negative count", "num_objects", -1},
		{"fractional bytes", "total_bytes", 1.5},
		{"null storage", "storage", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validCanaryDocument()
			doc[tt.field] = tt.value
			data, _ := json.Marshal(doc)

			_, decodeErr := DecodeCanary(data)

			var malformed *MalformedCanaryError
			assert.True(t, errors.As(decodeErr, &malformed), "expected MalformedCanaryError, got %v", decodeErr)
		})
	}
}

func TestDecodeCanaryInvalidJSON(t *testing.T) {
	for _, data := range []string{"", "not json", "[1, 2]", `{"_type": "Canary"`} {
		_, decodeErr := DecodeCanary([]byte(data))

		var malformed *MalformedCanaryError
		assert.True(t, errors.As(decodeErr, &malformed), "input %q", data)
	}
}

func TestReadCanaryFileNotFound(t *testing.T) {
	_, readErr := ReadCanaryFile(filepath.Join(t.TempDir(), CanaryFilename))

	assert.ErrorIs(t, readErr, ErrObjectNotFound)
}

func TestWriteAndReadCanaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), CanaryFilename)

	require.NoError(t, WriteCanaryFile(path, mockCanary()))
	canary, readErr := ReadCanaryFile(path)

	require.NoError(t, readErr)
	assert.Equal(t, mockCanary(), canary)

	info, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRestoreLag(t *testing.T) {
	generated := Canary{Timestamp: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)}
	restored := Canary{Timestamp: time.Date(2024, 1, 2, 9, 55, 30, 0, time.UTC)}

	lag := RestoreLag(generated, restored)

	assert.Equal(t, 270*time.Second, lag)
	assert.Equal(t, 270.0, RestoreLagMetric(lag).Value)
}

func TestRestoreLagNegative(t *testing.T) {
	generated := Canary{Timestamp: time.Date(2024, 1, 2, 9, 55, 30, 0, time.UTC)}
	restored := Canary{Timestamp: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)}

	lag := RestoreLag(generated, restored)

	assert.Equal(t, -270*time.Second, lag)
	assert.Equal(t, -270.0, RestoreLagMetric(lag).Value)
}

func TestNewCanary(t *testing.T) {
	target := Target{Computer: "study-pc", Storage: "dropbox", User: "alice"}
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.FixedZone("EET", 2*60*60))

	canary := NewCanary(target, Usage{Count: 42, Bytes: 1048576}, now)

	assert.Equal(t, "dropbox-alice", canary.RemoteID)
	assert.Equal(t, time.UTC, canary.Timestamp.Location())
	assert.True(t, now.Equal(canary.Timestamp))
	assert.Equal(t, int64(42), canary.NumObjects)
	assert.Equal(t, int64(1048576), canary.TotalBytes)
}
