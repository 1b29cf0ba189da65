package store

import "errors"

// Sentinel errors returned by repository sessions and record stores. Callers
// match them with [errors.Is].
var (
	// ErrInvalidTransition is returned by Begin on a session that already
	// started, and by Finish on a session that is not active. Always a
	// caller bug; never retried.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrInactiveSession is returned by any data operation issued while the
	// session is not active.
	ErrInactiveSession = errors.New("session is not active")

	// ErrNoGUIDs is returned by Fetch when the guid list is nil or empty.
	// An empty fetch is an invalid request, not an empty success.
	ErrNoGUIDs = errors.New("fetch requires at least one guid")

	// ErrDuplicateGUID is returned when more than one local row matches a
	// single guid. The store is in an irrecoverable state for that record;
	// the rows are never merged.
	ErrDuplicateGUID = errors.New("multiple local records share one guid")

	// ErrRecordNotFound is returned by record stores when a guid has no
	// local row.
	ErrRecordNotFound = errors.New("record not found")
)
