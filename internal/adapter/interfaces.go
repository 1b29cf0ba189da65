// SPDX-License-Identifier: Apache-2.0

// Package adapter provides the transport layer between the sync engine and
// the two remote services it talks to: the encrypted storage server and the
// token server that hands out per-node storage credentials.
//
// The adapters own serialisation, authentication headers and the mapping of
// HTTP status codes to the sentinel errors in errors.go, so that everything
// above them can use [errors.Is] without knowing about HTTP. Server-driven
// flow control (X-Weave-Backoff, Retry-After) is surfaced on every call via
// [ServerResponse], success or failure alike.
package adapter

import (
	"context"

	"github.com/weavesync/weavesync/models"
)

// StorageClient is the narrow surface of the Weave storage HTTP contract
// used by the stage machine. Implementations must fill a [ServerResponse]
// for every request that reached the server, even when the call errors, so
// backoff headers are never lost.
type StorageClient interface {
	// Configure points the client at a storage node and installs the Basic
	// Auth credentials for it. Called after every token exchange; replaces
	// any previous endpoint and credentials.
	Configure(endpoint, username, password string)

	// FetchInfoCollections retrieves the per-collection last-modified map
	// from info/collections.
	FetchInfoCollections(ctx context.Context) (models.InfoCollections, *ServerResponse, error)

	// FetchMetaGlobal retrieves and decodes the cleartext meta/global
	// record. Returns ErrNotFound when the server has none.
	FetchMetaGlobal(ctx context.Context) (models.MetaGlobal, *ServerResponse, error)

	// UploadMetaGlobal stores meta/global. ifUnmodifiedSince (ms, 0 to skip)
	// makes the write conditional; a lost race maps to ErrConcurrentModification.
	UploadMetaGlobal(ctx context.Context, global models.MetaGlobal, ifUnmodifiedSince int64) (*ServerResponse, error)

	// FetchRecord retrieves a single envelope from a collection.
	FetchRecord(ctx context.Context, collection, guid string) (models.Envelope, *ServerResponse, error)

	// FetchCollection retrieves full envelopes from a collection, limited to
	// records modified strictly after newer (ms) when newer > 0.
	FetchCollection(ctx context.Context, collection string, newer int64) ([]models.Envelope, *ServerResponse, error)

	// UploadRecord stores a single envelope, optionally conditional on
	// ifUnmodifiedSince (ms, 0 to skip).
	UploadRecord(ctx context.Context, env models.Envelope, ifUnmodifiedSince int64) (*ServerResponse, error)

	// UploadRecords posts a batch of envelopes to one collection.
	UploadRecords(ctx context.Context, collection string, envs []models.Envelope) (*ServerResponse, error)

	// DeleteRecord removes one record from a collection on the server.
	DeleteRecord(ctx context.Context, collection, guid string) (*ServerResponse, error)

	// DeleteCollection removes every record of one collection.
	DeleteCollection(ctx context.Context, collection string) (*ServerResponse, error)

	// DeleteAll wipes the account's entire server storage. Used only by the
	// fresh-start procedure.
	DeleteAll(ctx context.Context) (*ServerResponse, error)
}

// TokenClient exchanges an identity assertion for short-lived storage
// credentials and the account's assigned storage node.
type TokenClient interface {
	// Exchange presents the assertion to the token server. Fails fast with
	// ErrAssertionExpired when the assertion is already past its expiry,
	// without a network round trip.
	Exchange(ctx context.Context, assertion string) (models.TokenServerResponse, error)
}
