package models

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Record is one decrypted logical record of a collection. Fields carries the
// collection-specific cleartext body (title, URI, tags, ...) as raw JSON so
// that the sync core stays agnostic of individual engine schemas.
//
// Records are treated as immutable after construction: derive changed copies
// via WithGUID instead of mutating in place.
type Record struct {
	GUID         string          `json:"id"`
	Collection   string          `json:"collection"`
	LastModified int64           `json:"lastModified"` // milliseconds since epoch
	Deleted      bool            `json:"deleted,omitempty"`
	SortIndex    int64           `json:"sortindex,omitempty"`
	TTL          int64           `json:"ttl,omitempty"`
	Fields       json.RawMessage `json:"fields,omitempty"`

	// LocalID is the storage row identity on this device. It never travels
	// over the wire and never participates in payload equality.
	LocalID int64 `json:"-"`
}

// WithGUID returns a copy of the record carrying a different guid and local
// storage id. The receiver is left untouched.
func (r Record) WithGUID(guid string, localID int64) Record {
	out := r
	out.GUID = guid
	out.LocalID = localID
	return out
}

// EqualIdentifiers reports whether both records name the same logical record:
// same guid in the same collection.
func (r Record) EqualIdentifiers(o Record) bool {
	return r.GUID == o.GUID && r.Collection == o.Collection
}

// EqualPayloads extends EqualIdentifiers with the deleted flag and the
// collection-specific field values. Two tombstones for the same guid always
// have equal payloads. Transient fields (timestamps, local row ids) are
// deliberately excluded: this is the relation used to decide whether an
// incoming record is a real change.
func (r Record) EqualPayloads(o Record) bool {
	if !r.EqualIdentifiers(o) || r.Deleted != o.Deleted {
		return false
	}
	if r.Deleted {
		return true
	}
	return equalJSON(r.Fields, o.Fields)
}

// CongruentWith extends EqualPayloads with local-id compatibility: the two
// records may be merged into one row only if at most one side carries a local
// storage id, or both carry the same one.
func (r Record) CongruentWith(o Record) bool {
	if !r.EqualPayloads(o) {
		return false
	}
	return r.LocalID == 0 || o.LocalID == 0 || r.LocalID == o.LocalID
}

// Equals is full value equality, timestamps and sort index included.
func (r Record) Equals(o Record) bool {
	return r.CongruentWith(o) &&
		r.LocalID == o.LocalID &&
		r.LastModified == o.LastModified &&
		r.SortIndex == o.SortIndex
}

// equalJSON compares two JSON documents structurally, so that key order and
// whitespace differences do not count as changes.
func equalJSON(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}

	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
