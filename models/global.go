package models

import "math"

// KeysPayload is the decrypted body of the bootstrap crypto/keys record. It
// restates its own identity (id and collection) so the codec can reject a
// structurally valid envelope that was stored under the wrong name.
type KeysPayload struct {
	ID          string              `json:"id"`
	Collection  string              `json:"collection"`
	Default     []string            `json:"default"`     // [base64 encKey, base64 hmacKey]
	Collections map[string][]string `json:"collections"` // per-collection overrides
}

// EngineEntry is one engine's declaration inside meta/global.
type EngineEntry struct {
	Version int    `json:"version"`
	SyncID  string `json:"syncID"`
}

// MetaGlobal is the cleartext meta/global record describing the server-side
// storage layout and the set of enabled engines.
type MetaGlobal struct {
	SyncID         string                 `json:"syncID"`
	StorageVersion int                    `json:"storageVersion"`
	Engines        map[string]EngineEntry `json:"engines"`
	Declined       []string               `json:"declined,omitempty"`
}

// InfoCollections maps collection name to its server last-modified time in
// decimal seconds, as returned by info/collections.
type InfoCollections map[string]float64

// Contains reports whether the server has ever stored the named collection.
func (ic InfoCollections) Contains(name string) bool {
	_, ok := ic[name]
	return ok
}

// ModifiedMillis returns the collection's server modification time in
// milliseconds, or 0 when the collection has never been written.
func (ic InfoCollections) ModifiedMillis(name string) int64 {
	return int64(math.Round(ic[name] * 1000))
}
