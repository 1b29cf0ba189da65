// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidAccountConfigs indicates invalid account settings
	// (for example, missing email, recovery key, or assertion).
	ErrInvalidAccountConfigs = errors.New("invalid account configuration")
	// ErrInvalidTokenConfigs indicates invalid token server settings
	// (for example, missing server URL or zero request timeout).
	ErrInvalidTokenConfigs = errors.New("invalid token server configuration")
	// ErrInvalidStorageConfigs indicates invalid storage settings
	// (for example, empty database path or no collections).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidWorkerConfigs indicates invalid background worker settings
	// (for example, zero sync interval).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
