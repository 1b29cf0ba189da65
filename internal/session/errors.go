// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionAlreadyRan is returned when Run is called twice on the same
	// Session. Sessions are single-use; the scheduler builds a new one per run.
	ErrSessionAlreadyRan = errors.New("session already ran")

	// ErrNodeReassigned wraps an unauthorized storage response. The cached
	// cluster URL has been invalidated; the next run must re-resolve the
	// storage node through the token server.
	ErrNodeReassigned = errors.New("storage node reassigned, reauthentication required")
)

// UpgradeRequiredError aborts a run whose server declares a storage format
// newer than this client understands. Retrying without a client upgrade
// cannot succeed.
type UpgradeRequiredError struct {
	ServerVersion int
}

func (e *UpgradeRequiredError) Error() string {
	return fmt.Sprintf("server storage version %d exceeds supported version %d, client upgrade required",
		e.ServerVersion, supportedStorageVersion)
}

// KeyMismatchError reports that the server's crypto/keys record diverged
// from the locally cached key ring. The affected collections have already
// had their sync timestamps reset; the run ends so the next one syncs from
// scratch with the new keys.
type KeyMismatchError struct {
	// Full is set when the default bundle changed, which invalidates every
	// collection at once.
	Full bool

	// Collections lists the reset collections when only per-collection
	// overrides changed.
	Collections []string
}

func (e *KeyMismatchError) Error() string {
	if e.Full {
		return "collection keys changed on server, full client reset performed"
	}
	return fmt.Sprintf("collection key overrides changed on server, reset: %s",
		strings.Join(e.Collections, ", "))
}

// abortError carries a deliberate stage abort: the run stops, but through
// the aborted callback rather than the error one.
type abortError struct {
	reason string
}

func (e *abortError) Error() string { return "session aborted: " + e.reason }

func abort(reason string) error { return &abortError{reason: reason} }

func abortf(format string, args ...any) error {
	return &abortError{reason: fmt.Sprintf(format, args...)}
}
