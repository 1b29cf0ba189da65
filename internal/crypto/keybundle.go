// SPDX-License-Identifier: Apache-2.0

// Package crypto implements the symmetric envelope-encryption layer that
// protects every synced record: AES-256-CBC with PKCS#7 padding for
// confidentiality and HMAC-SHA256 over the base64 ciphertext for integrity.
// It also owns the collection key ring and the JSON envelope codec, including
// the bootstrap crypto/keys record that unlocks all other collections.
package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const keyLen = 32 // 256-bit keys for both AES and HMAC

// syncKeyLen is the length of the decoded recovery key users transcribe
// between devices.
const syncKeyLen = 16

// hkdfInfoPrefix labels the HKDF expansion of the recovery key so the same
// secret can never yield colliding keys for a different protocol.
const hkdfInfoPrefix = "Sync-AES_256_CBC-HMAC256"

// KeyBundle is a pair of symmetric keys used together for one collection:
// one for AES encryption, one for HMAC. Immutable once constructed.
type KeyBundle struct {
	encryptionKey []byte
	hmacKey       []byte
}

// NewKeyBundle constructs a bundle from raw key material. Both keys must be
// exactly 32 bytes. The slices are copied so later mutation of the arguments
// cannot reach into the bundle.
func NewKeyBundle(encryptionKey, hmacKey []byte) (KeyBundle, error) {
	if len(encryptionKey) != keyLen || len(hmacKey) != keyLen {
		return KeyBundle{}, ErrInvalidKeyLength
	}
	return KeyBundle{
		encryptionKey: bytes.Clone(encryptionKey),
		hmacKey:       bytes.Clone(hmacKey),
	}, nil
}

// GenerateKeyBundle creates a fresh random bundle from the OS CSPRNG. Used
// during a fresh start when the server holds no usable keys.
func GenerateKeyBundle() (KeyBundle, error) {
	material := make([]byte, 2*keyLen)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return KeyBundle{}, fmt.Errorf("generate key bundle: %w", err)
	}
	return KeyBundle{
		encryptionKey: material[:keyLen],
		hmacKey:       material[keyLen:],
	}, nil
}

// BundleFromSyncKey derives the bootstrap bundle from the 16-byte recovery
// key and the account identifier using HKDF-SHA256 expansion. The account
// identifier binds the derived keys to one account so two users sharing a
// recovery key (however unlikely) still end up with distinct bundles.
func BundleFromSyncKey(syncKey []byte, accountID string) (KeyBundle, error) {
	if len(syncKey) != syncKeyLen {
		return KeyBundle{}, ErrInvalidSyncKey
	}

	info := []byte(hkdfInfoPrefix + accountID)
	material := make([]byte, 2*keyLen)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, syncKey, info), material); err != nil {
		return KeyBundle{}, fmt.Errorf("derive key bundle: %w", err)
	}

	return KeyBundle{
		encryptionKey: material[:keyLen],
		hmacKey:       material[keyLen:],
	}, nil
}

// DecodeRecoveryKey turns a user-entered "friendly" recovery key into the
// raw sync key. The friendly form is lowercase base32 with dashes allowed
// anywhere and the easily-confused letters l and o replaced by 8 and 9.
func DecodeRecoveryKey(friendly string) ([]byte, error) {
	s := strings.ToUpper(strings.ReplaceAll(friendly, "-", ""))
	s = strings.ReplaceAll(s, "8", "L")
	s = strings.ReplaceAll(s, "9", "O")

	// Restore the padding base32 requires; users never type it.
	if n := len(s) % 8; n != 0 {
		s += strings.Repeat("=", 8-n)
	}

	key, err := base32.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSyncKey, err)
	}
	if len(key) != syncKeyLen {
		return nil, ErrInvalidSyncKey
	}
	return key, nil
}

// Equal reports byte-for-byte equality of both keys. Two bundles are
// interchangeable only when Equal returns true.
func (b KeyBundle) Equal(o KeyBundle) bool {
	return bytes.Equal(b.encryptionKey, o.encryptionKey) &&
		bytes.Equal(b.hmacKey, o.hmacKey)
}

// IsZero reports whether the bundle carries no key material.
func (b KeyBundle) IsZero() bool {
	return len(b.encryptionKey) == 0 && len(b.hmacKey) == 0
}
