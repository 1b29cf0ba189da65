// SPDX-License-Identifier: Apache-2.0

package config

// validate checks that the final merged [StructuredConfig] satisfies the
// invariants the client needs at startup.
//
// Returns nil if the configuration is valid, or one of the sentinel errors
// from errors.go otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Account.Email == "" || cfg.Account.RecoveryKey == "" || cfg.Account.Assertion == "" {
		return ErrInvalidAccountConfigs
	}

	if cfg.Token.ServerURL == "" || cfg.Token.RequestTimeout == 0 {
		return ErrInvalidTokenConfigs
	}

	if cfg.Storage.DatabasePath == "" || len(cfg.Storage.Collections) == 0 {
		return ErrInvalidStorageConfigs
	}

	if cfg.Workers.SyncInterval == 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
