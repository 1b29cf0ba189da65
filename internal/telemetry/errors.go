// SPDX-License-Identifier: Apache-2.0

package telemetry

import "errors"

var (
	// ErrHardFailure marks a submission the server rejected for a reason
	// retrying will not fix (validation failure, oversized payload,
	// forbidden). The daily failure budget is not charged for these.
	ErrHardFailure = errors.New("telemetry submission rejected")

	// ErrSoftFailure marks a transient submission failure (server error,
	// transport problem) worth retrying on the short interval.
	ErrSoftFailure = errors.New("telemetry submission failed transiently")
)
