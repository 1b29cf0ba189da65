// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"encoding/json"
	"fmt"

	"github.com/weavesync/weavesync/models"
)

// Identity of the bootstrap keys record. Every other collection's keys hang
// off this one envelope.
const (
	keysRecordGUID   = "keys"
	cryptoCollection = "crypto"
)

// EncryptEnvelope encrypts a cleartext record body into a wire envelope under
// the given bundle.
func EncryptEnvelope(guid, collection string, cleartext []byte, bundle KeyBundle) (models.Envelope, error) {
	payload, err := Encrypt(cleartext, bundle)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("encrypt envelope %s/%s: %w", collection, guid, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("marshal envelope payload: %w", err)
	}

	return models.Envelope{
		GUID:       guid,
		Collection: collection,
		Payload:    string(body),
	}, nil
}

// DecryptEnvelope decodes the envelope's payload wrapper and decrypts it.
// Returns ErrMalformedEnvelope for undecodable payloads; HMAC and padding
// failures pass through from Decrypt untouched so callers can tell the
// difference.
func DecryptEnvelope(env models.Envelope, bundle KeyBundle) ([]byte, error) {
	var payload models.CryptoPayload
	if err := json.Unmarshal([]byte(env.Payload), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode payload of %s: %w", ErrMalformedEnvelope, env.GUID, err)
	}
	if payload.Ciphertext == "" || payload.IV == "" || payload.HMAC == "" {
		return nil, fmt.Errorf("%w: envelope %s missing fields", ErrMalformedEnvelope, env.GUID)
	}
	return Decrypt(payload, bundle)
}

// DecodeKeysEnvelope decrypts the bootstrap crypto/keys envelope with the
// bundle derived from the recovery key and rebuilds the collection key ring.
// The decrypted body must identify itself as the keys record; anything else
// is ErrInvalidKeysBundle. The ring's timestamp is taken from the envelope.
func DecodeKeysEnvelope(env models.Envelope, bootstrap KeyBundle) (*CollectionKeys, error) {
	cleartext, err := DecryptEnvelope(env, bootstrap)
	if err != nil {
		return nil, err
	}

	var payload models.KeysPayload
	if err := json.Unmarshal(cleartext, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode keys payload: %w", ErrInvalidKeysBundle, err)
	}

	ck, err := CollectionKeysFromPayload(payload)
	if err != nil {
		return nil, err
	}
	ck.SetTimestamp(env.ModifiedMillis())
	return ck, nil
}

// EncodeKeysEnvelope encrypts a key ring into the bootstrap crypto/keys
// envelope, ready for upload.
func EncodeKeysEnvelope(ck *CollectionKeys, bootstrap KeyBundle) (models.Envelope, error) {
	cleartext, err := json.Marshal(ck.AsPayload())
	if err != nil {
		return models.Envelope{}, fmt.Errorf("marshal keys payload: %w", err)
	}
	return EncryptEnvelope(keysRecordGUID, cryptoCollection, cleartext, bootstrap)
}
