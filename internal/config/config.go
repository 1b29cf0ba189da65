// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the sync
// client. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional
// JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Account holds the user's account identity and key material.
	Account Account `envPrefix:"ACCOUNT_"`

	// Token holds settings for the token server that hands out storage
	// node credentials.
	Token Token `envPrefix:"TOKEN_"`

	// Storage holds local database paths and storage node client settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Telemetry holds settings for the sync ping submission pipeline.
	Telemetry Telemetry `envPrefix:"TELEMETRY_"`

	// Workers holds configuration for background worker loops.
	Workers Workers `envPrefix:"WORKERS_"`

	// Log holds logging output settings.
	Log Log `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Account holds the user's identity and the key material the envelope
// encryption layer is derived from.
type Account struct {
	// Email is the account identifier used in key derivation.
	// Env: ACCOUNT_EMAIL
	Email string `env:"EMAIL"`

	// RecoveryKey is the user-friendly base32 recovery key
	// (e.g. "x-xxxxx-xxxxx-xxxxx-xxxxx-xxxxx"). Must be kept confidential.
	// Env: ACCOUNT_RECOVERY_KEY
	RecoveryKey string `env:"RECOVERY_KEY"`

	// Assertion is the identity assertion presented to the token server
	// in exchange for storage node credentials.
	// Env: ACCOUNT_ASSERTION
	Assertion string `env:"ASSERTION"`

	// DeviceName is the human-readable name published in the clients
	// collection (e.g. "Work Laptop").
	// Env: ACCOUNT_DEVICE_NAME
	DeviceName string `env:"DEVICE_NAME"`

	// DeviceGUID identifies this device's record in the clients
	// collection. Generated on first run when empty.
	// Env: ACCOUNT_DEVICE_GUID
	DeviceGUID string `env:"DEVICE_GUID"`
}

// Token holds settings for the token server client.
type Token struct {
	// ServerURL is the base URL of the token server
	// (e.g. "https://token.example.com/1.0/sync/1.5").
	// Env: TOKEN_SERVER_URL
	ServerURL string `env:"SERVER_URL"`

	// RequestTimeout bounds a single token exchange request.
	// Env: TOKEN_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage holds local persistence paths and storage node client settings.
type Storage struct {
	// DatabasePath is the path to the local SQLite database holding the
	// synchronized records.
	// Env: STORAGE_DATABASE_PATH
	DatabasePath string `env:"DATABASE_PATH"`

	// StatePath is the path to the JSON file persisting sync session
	// state (cluster URL, sync ids, per-collection watermarks, key ring).
	// Env: STORAGE_STATE_PATH
	StatePath string `env:"STATE_PATH"`

	// RequestTimeout bounds a single storage node request.
	// Env: STORAGE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// Collections lists the data collections to synchronize, in the
	// order they are synced (e.g. "bookmarks,history,passwords").
	// Env: STORAGE_COLLECTIONS (comma separated)
	Collections []string `env:"COLLECTIONS" envSeparator:","`
}

// Telemetry holds settings for the sync ping submission pipeline.
type Telemetry struct {
	// BaseURL is the base URL of the telemetry ingestion endpoint.
	// An empty value disables submission.
	// Env: TELEMETRY_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// Namespace is the document namespace path segment on the ingestion
	// endpoint.
	// Env: TELEMETRY_NAMESPACE
	Namespace string `env:"NAMESPACE"`

	// StatePath is the path to the JSON file persisting submission
	// throttling state across restarts.
	// Env: TELEMETRY_STATE_PATH
	StatePath string `env:"STATE_PATH"`

	// SubmitInterval is how often the submitter re-evaluates whether a
	// ping is due. Actual upload cadence is governed by the throttling
	// policy, not this interval.
	// Env: TELEMETRY_SUBMIT_INTERVAL
	SubmitInterval time.Duration `env:"SUBMIT_INTERVAL"`
}

// Workers holds configuration for background worker loops.
type Workers struct {
	// SyncInterval is the period between automatically scheduled sync
	// runs (e.g. "10m").
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// Log holds logging output settings.
type Log struct {
	// Level is the minimum level emitted ("debug", "info", "warn",
	// "error").
	// Env: LOG_LEVEL
	Level string `env:"LEVEL"`

	// File is an optional path to write logs to instead of stderr.
	// Env: LOG_FILE
	File string `env:"FILE"`
}

// GetStructuredConfig loads, merges, and validates the client configuration
// from all available sources in the following priority order (first source
// wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
