// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON-friendly field
// types so durations can be written as strings like "10m" in config files.
type StructuredJSONConfig struct {
	Account struct {
		Email       string `json:"email"`
		RecoveryKey string `json:"recovery_key"`
		Assertion   string `json:"assertion"`
		DeviceName  string `json:"device_name"`
		DeviceGUID  string `json:"device_guid"`
	} `json:"account,omitempty"`

	Token struct {
		ServerURL      string   `json:"server_url"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"token,omitempty"`

	Storage struct {
		DatabasePath   string   `json:"database_path"`
		StatePath      string   `json:"state_path"`
		RequestTimeout Duration `json:"request_timeout"`
		Collections    []string `json:"collections"`
	} `json:"storage,omitempty"`

	Telemetry struct {
		BaseURL        string   `json:"base_url"`
		Namespace      string   `json:"namespace"`
		StatePath      string   `json:"state_path"`
		SubmitInterval Duration `json:"submit_interval"`
	} `json:"telemetry,omitempty"`

	Workers struct {
		SyncInterval Duration `json:"sync_interval"`
	} `json:"workers,omitempty"`

	Log struct {
		Level string `json:"level"`
		File  string `json:"file"`
	} `json:"log,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Account: Account{
			Email:       jsonCfg.Account.Email,
			RecoveryKey: jsonCfg.Account.RecoveryKey,
			Assertion:   jsonCfg.Account.Assertion,
			DeviceName:  jsonCfg.Account.DeviceName,
			DeviceGUID:  jsonCfg.Account.DeviceGUID,
		},
		Token: Token{
			ServerURL:      jsonCfg.Token.ServerURL,
			RequestTimeout: time.Duration(jsonCfg.Token.RequestTimeout),
		},
		Storage: Storage{
			DatabasePath:   jsonCfg.Storage.DatabasePath,
			StatePath:      jsonCfg.Storage.StatePath,
			RequestTimeout: time.Duration(jsonCfg.Storage.RequestTimeout),
			Collections:    jsonCfg.Storage.Collections,
		},
		Telemetry: Telemetry{
			BaseURL:        jsonCfg.Telemetry.BaseURL,
			Namespace:      jsonCfg.Telemetry.Namespace,
			StatePath:      jsonCfg.Telemetry.StatePath,
			SubmitInterval: time.Duration(jsonCfg.Telemetry.SubmitInterval),
		},
		Workers: Workers{
			SyncInterval: time.Duration(jsonCfg.Workers.SyncInterval),
		},
		Log: Log{
			Level: jsonCfg.Log.Level,
			File:  jsonCfg.Log.File,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
