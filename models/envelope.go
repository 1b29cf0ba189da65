package models

import "math"

// Envelope is the encrypted wire representation of one record as stored on
// the server: an opaque payload string inside a thin JSON wrapper.
type Envelope struct {
	GUID       string  `json:"id"`
	Collection string  `json:"collection,omitempty"`
	Payload    string  `json:"payload"`
	Modified   float64 `json:"modified,omitempty"` // server decimal seconds
	SortIndex  int64   `json:"sortindex,omitempty"`
	TTL        int64   `json:"ttl,omitempty"`
}

// ModifiedMillis converts the server's decimal-seconds modification time to
// milliseconds since epoch. Rounded, not truncated: the float math can land
// a fraction below the integer for large timestamps.
func (e Envelope) ModifiedMillis() int64 {
	return int64(math.Round(e.Modified * 1000))
}

// CryptoPayload is the decoded form of Envelope.Payload: base64 ciphertext,
// base64 IV and a hex HMAC over the base64 ciphertext bytes.
type CryptoPayload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"IV"`
	HMAC       string `json:"hmac"`
}
