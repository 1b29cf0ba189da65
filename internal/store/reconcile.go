// SPDX-License-Identifier: Apache-2.0

package store

import "github.com/weavesync/weavesync/models"

// reconcileOutcome is the decision for one incoming record against the
// existing local row.
type reconcileOutcome int

const (
	// outcomeNoop: nothing to change; the store still reports success.
	outcomeNoop reconcileOutcome = iota

	// outcomeKeepLocal: the local record wins; the incoming copy is dropped.
	outcomeKeepLocal

	// outcomeReplace: the incoming record's fields and timestamp replace the
	// local ones, but the local row identity is preserved.
	outcomeReplace

	// outcomeDeleteLocal: the incoming tombstone removes the local record.
	outcomeDeleteLocal
)

// reconcile decides what to do with an incoming record when a local row for
// the same guid exists. lastSync is the session's last-sync watermark (ms):
// a local record modified after it counts as locally changed.
//
// Conflict resolution is deliberately last-writer-wins on the record
// timestamp, with no field-level merging. When both sides changed since the
// last sync, the copy with the larger lastModified wins wholesale.
func reconcile(existing, incoming models.Record, lastSync int64) reconcileOutcome {
	// Payload-equal copies are not a real change, whatever the timestamps
	// or row ids say.
	if existing.EqualPayloads(incoming) {
		return outcomeNoop
	}

	if incoming.Deleted {
		// A tombstone deletes only what it postdates. An older tombstone
		// racing a newer local write is dropped.
		if incoming.LastModified > existing.LastModified {
			return outcomeDeleteLocal
		}
		return outcomeKeepLocal
	}

	locallyModified := existing.LastModified > lastSync
	if !locallyModified {
		// Only the remote side changed: it replaces the local copy
		// outright, fields and timestamp both.
		return outcomeReplace
	}

	// Both sides modified since the last sync.
	if incoming.LastModified > existing.LastModified {
		return outcomeReplace
	}
	return outcomeKeepLocal
}
