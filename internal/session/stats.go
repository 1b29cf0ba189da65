// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/crypto"
)

type failureClass int

const (
	failureOther failureClass = iota
	failureAuth
	failureIO
	failureParse
)

// classify buckets a run-fatal error for statistics: authentication problems
// need new credentials, IO problems are transient and worth a plain retry,
// parse problems indicate corrupt server data.
func classify(err error) failureClass {
	switch {
	case errors.Is(err, adapter.ErrUnauthorized),
		errors.Is(err, adapter.ErrInvalidCredentials),
		errors.Is(err, adapter.ErrAssertionExpired):
		return failureAuth

	case errors.Is(err, adapter.ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return failureIO

	case errors.Is(err, crypto.ErrMalformedEnvelope),
		errors.Is(err, crypto.ErrInvalidKeysBundle),
		errors.Is(err, crypto.ErrHMACMismatch),
		errors.Is(err, crypto.ErrBadPadding):
		return failureParse
	}

	var conditions *adapter.ConditionsRequiredError
	if errors.As(err, &conditions) {
		return failureAuth
	}

	var httpErr *adapter.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return failureIO
		}
		return failureOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return failureIO
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return failureParse
	}

	return failureOther
}
