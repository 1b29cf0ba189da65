// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"flag"
	"strings"
	"time"
)

// CollectionList holds an ordered list of collection names.
// It implements the flag.Value interface and parses comma-separated input.
type CollectionList []string

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-account account email
//	-recovery-key account recovery key
//	-assertion identity assertion for the token server
//	-device-name device name shown to other clients
//	-token-url token server base URL
//	-d local database path
//	-state sync state file path
//	-collections comma-separated collections to sync
//	-telemetry-url telemetry ingestion base URL
//	-sync-interval period between scheduled sync runs (e.g., "10m")
//	-request-timeout storage request timeout (e.g., "30s", "1m")
//	-log-level minimum log level
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	var accountEmail string
	var recoveryKey string
	var assertion string
	var deviceName string
	var tokenServerURL string
	var databasePath string
	var statePath string
	var collections CollectionList
	var telemetryURL string
	var syncInterval time.Duration
	var requestTimeout time.Duration
	var logLevel string
	var jsonConfigPath string

	flag.StringVar(&accountEmail, "account", "", "Account email")
	flag.StringVar(&recoveryKey, "recovery-key", "", "Account recovery key")
	flag.StringVar(&assertion, "assertion", "", "Identity assertion")
	flag.StringVar(&deviceName, "device-name", "", "Device name")
	flag.StringVar(&tokenServerURL, "token-url", "", "Token server base URL")
	flag.StringVar(&databasePath, "d", "", "Local database path")
	flag.StringVar(&statePath, "state", "", "Sync state file path")
	flag.Var(&collections, "collections", "Comma-separated collections to sync")
	flag.StringVar(&telemetryURL, "telemetry-url", "", "Telemetry ingestion base URL")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Period between scheduled sync runs (e.g., 10m)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Storage request timeout (e.g., 30s, 1m)")
	flag.StringVar(&logLevel, "log-level", "", "Minimum log level")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	return &StructuredConfig{
		Account: Account{
			Email:       accountEmail,
			RecoveryKey: recoveryKey,
			Assertion:   assertion,
			DeviceName:  deviceName,
		},
		Token: Token{
			ServerURL: tokenServerURL,
		},
		Storage: Storage{
			DatabasePath:   databasePath,
			StatePath:      statePath,
			RequestTimeout: requestTimeout,
			Collections:    collections,
		},
		Telemetry: Telemetry{
			BaseURL: telemetryURL,
		},
		Workers: Workers{
			SyncInterval: syncInterval,
		},
		Log: Log{
			Level: logLevel,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns the canonical comma-separated form of the list.
func (c *CollectionList) String() string {
	if c == nil {
		return ""
	}

	return strings.Join(*c, ",")
}

// Set parses a comma-separated list of collection names, rejecting empty
// elements and duplicates.
func (c *CollectionList) Set(s string) error {
	if s == "" {
		return errors.New("need at least one collection name")
	}

	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return errors.New("empty collection name")
		}
		if _, ok := seen[name]; ok {
			return errors.New("duplicate collection name: " + name)
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	*c = names
	return nil
}
