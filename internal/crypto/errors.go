package crypto

import "errors"

var (
	// ErrHMACMismatch is returned when an envelope's HMAC does not verify.
	// Decryption is never attempted for such an envelope.
	ErrHMACMismatch = errors.New("envelope hmac mismatch")

	// ErrBadPadding is returned when the ciphertext decrypts to invalid
	// PKCS#7 padding. Kept distinct from ErrHMACMismatch for diagnostics;
	// both are unrecoverable for the affected record.
	ErrBadPadding = errors.New("invalid ciphertext padding")

	// ErrInvalidKeysBundle is returned when a crypto/keys envelope decrypts
	// cleanly but does not identify itself as id "keys" in collection
	// "crypto", or carries a malformed default key pair.
	ErrInvalidKeysBundle = errors.New("invalid collection keys bundle")

	// ErrInvalidKeyLength is returned when a key bundle is constructed from
	// keys that are not 32 bytes each.
	ErrInvalidKeyLength = errors.New("key bundle keys must be 32 bytes")

	// ErrMalformedEnvelope is returned when an envelope payload cannot be
	// decoded (bad JSON, bad base64, truncated ciphertext).
	ErrMalformedEnvelope = errors.New("malformed crypto envelope")

	// ErrInvalidSyncKey is returned when a user-entered recovery key does
	// not decode to the expected 16 bytes.
	ErrInvalidSyncKey = errors.New("invalid recovery key")
)
