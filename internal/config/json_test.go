// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Duration
		expectError bool
	}{
		{name: "string form", input: `"1h"`, expected: time.Hour},
		{name: "string with minutes", input: `"90m"`, expected: 90 * time.Minute},
		{name: "numeric nanoseconds", input: `30000000000`, expected: 30 * time.Second},
		{name: "invalid string", input: `"soon"`, expectError: true},
		{name: "invalid type", input: `["1h"]`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)

			if tt.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, time.Duration(d))
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"1h30m0s"`, string(data))
}

func TestParseJSON_AllFields(t *testing.T) {
	content := `{
		"account": {
			"email": "user@example.com",
			"recovery_key": "a-aaaaa-aaaaa-aaaaa-aaaaa-aaaaa",
			"assertion": "assertion-blob",
			"device_name": "Work Laptop",
			"device_guid": "device-guid-1"
		},
		"token": {
			"server_url": "https://token.example.com",
			"request_timeout": "15s"
		},
		"storage": {
			"database_path": "/var/lib/weavesync/records.db",
			"state_path": "/var/lib/weavesync/state.json",
			"request_timeout": "30s",
			"collections": ["bookmarks", "history"]
		},
		"telemetry": {
			"base_url": "https://telemetry.example.com",
			"namespace": "sync",
			"state_path": "/var/lib/weavesync/telemetry.json",
			"submit_interval": "1h"
		},
		"workers": {
			"sync_interval": "10m"
		},
		"log": {
			"level": "debug",
			"file": "/var/log/weavesync.log"
		}
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", cfg.Account.Email)
	assert.Equal(t, "a-aaaaa-aaaaa-aaaaa-aaaaa-aaaaa", cfg.Account.RecoveryKey)
	assert.Equal(t, "assertion-blob", cfg.Account.Assertion)
	assert.Equal(t, "Work Laptop", cfg.Account.DeviceName)
	assert.Equal(t, "device-guid-1", cfg.Account.DeviceGUID)

	assert.Equal(t, "https://token.example.com", cfg.Token.ServerURL)
	assert.Equal(t, 15*time.Second, cfg.Token.RequestTimeout)

	assert.Equal(t, "/var/lib/weavesync/records.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "/var/lib/weavesync/state.json", cfg.Storage.StatePath)
	assert.Equal(t, 30*time.Second, cfg.Storage.RequestTimeout)
	assert.Equal(t, []string{"bookmarks", "history"}, cfg.Storage.Collections)

	assert.Equal(t, "https://telemetry.example.com", cfg.Telemetry.BaseURL)
	assert.Equal(t, "sync", cfg.Telemetry.Namespace)
	assert.Equal(t, time.Hour, cfg.Telemetry.SubmitInterval)

	assert.Equal(t, 10*time.Minute, cfg.Workers.SyncInterval)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/weavesync.log", cfg.Log.File)

	// the file path itself is never echoed back from the file
	assert.Empty(t, cfg.JSONFilePath)
}

func TestParseJSON_NumericDuration(t *testing.T) {
	content := `{"workers": {"sync_interval": 600000000000}}`

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Workers.SyncInterval)
}

func TestParseJSON_MissingFile(t *testing.T) {
	cfg, err := parseJSON(filepath.Join(t.TempDir(), "nope.json"))

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading a json file")
}

func TestParseJSON_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"account": `), 0o600))

	cfg, err := parseJSON(path)

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error decoding json configs")
}
