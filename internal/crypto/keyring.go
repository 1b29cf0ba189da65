// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/weavesync/weavesync/models"
)

// CollectionKeys is the key ring for one account: a default bundle applied
// to every collection plus optional per-collection overrides. It is owned by
// a single sync run at a time and is not safe for concurrent mutation.
type CollectionKeys struct {
	defaultBundle KeyBundle
	overrides     map[string]KeyBundle

	// timestamp is the server modification time (ms) of the crypto/keys
	// record these keys were decrypted from; zero for freshly generated keys.
	timestamp int64
}

// NewCollectionKeys builds a ring around the given default bundle.
func NewCollectionKeys(defaultBundle KeyBundle) *CollectionKeys {
	return &CollectionKeys{
		defaultBundle: defaultBundle,
		overrides:     make(map[string]KeyBundle),
	}
}

// GenerateCollectionKeys creates a ring with a fresh random default bundle
// and no overrides, as used on a fresh start.
func GenerateCollectionKeys() (*CollectionKeys, error) {
	bundle, err := GenerateKeyBundle()
	if err != nil {
		return nil, err
	}
	return NewCollectionKeys(bundle), nil
}

// DefaultBundle returns the ring's default key bundle.
func (ck *CollectionKeys) DefaultBundle() KeyBundle {
	return ck.defaultBundle
}

// BundleFor returns the effective bundle for a collection: its override if
// one exists, the default otherwise.
func (ck *CollectionKeys) BundleFor(collection string) KeyBundle {
	if b, ok := ck.overrides[collection]; ok {
		return b
	}
	return ck.defaultBundle
}

// SetBundleFor installs a per-collection override.
func (ck *CollectionKeys) SetBundleFor(collection string, bundle KeyBundle) {
	ck.overrides[collection] = bundle
}

// Timestamp returns the server modification time (ms) of the keys record the
// ring was decrypted from, or zero for generated keys.
func (ck *CollectionKeys) Timestamp() int64 { return ck.timestamp }

// SetTimestamp records the server modification time of the backing record.
func (ck *CollectionKeys) SetTimestamp(ms int64) { ck.timestamp = ms }

// DefaultDiffers reports whether the two rings' default bundles diverge.
// A divergent default invalidates every collection at once.
func (ck *CollectionKeys) DefaultDiffers(other *CollectionKeys) bool {
	if other == nil {
		return true
	}
	return !ck.defaultBundle.Equal(other.defaultBundle)
}

// Differences returns the sorted set of collection names whose effective
// bundle differs between the two rings, considering overrides on either
// side. The default bundles are compared by DefaultDiffers, not here.
func (ck *CollectionKeys) Differences(other *CollectionKeys) []string {
	if other == nil {
		return nil
	}

	names := make(map[string]struct{}, len(ck.overrides)+len(other.overrides))
	for name := range ck.overrides {
		names[name] = struct{}{}
	}
	for name := range other.overrides {
		names[name] = struct{}{}
	}

	var diff []string
	for name := range names {
		if !ck.BundleFor(name).Equal(other.BundleFor(name)) {
			diff = append(diff, name)
		}
	}
	sort.Strings(diff)
	return diff
}

// AsPayload serialises the ring into the cleartext body of the crypto/keys
// record.
func (ck *CollectionKeys) AsPayload() models.KeysPayload {
	p := models.KeysPayload{
		ID:          keysRecordGUID,
		Collection:  cryptoCollection,
		Default:     bundleToPair(ck.defaultBundle),
		Collections: make(map[string][]string, len(ck.overrides)),
	}
	for name, bundle := range ck.overrides {
		p.Collections[name] = bundleToPair(bundle)
	}
	return p
}

// CollectionKeysFromPayload rebuilds a ring from a decrypted crypto/keys
// body. The payload must identify itself correctly; a misfiled envelope is
// rejected as ErrInvalidKeysBundle even when structurally valid.
func CollectionKeysFromPayload(p models.KeysPayload) (*CollectionKeys, error) {
	if p.ID != keysRecordGUID || p.Collection != cryptoCollection {
		return nil, ErrInvalidKeysBundle
	}

	defaultBundle, err := bundleFromPair(p.Default)
	if err != nil {
		return nil, fmt.Errorf("%w: default bundle: %w", ErrInvalidKeysBundle, err)
	}

	ck := NewCollectionKeys(defaultBundle)
	for name, pair := range p.Collections {
		bundle, err := bundleFromPair(pair)
		if err != nil {
			return nil, fmt.Errorf("%w: collection %s: %w", ErrInvalidKeysBundle, name, err)
		}
		ck.overrides[name] = bundle
	}
	return ck, nil
}

func bundleToPair(b KeyBundle) []string {
	return []string{
		base64.StdEncoding.EncodeToString(b.encryptionKey),
		base64.StdEncoding.EncodeToString(b.hmacKey),
	}
}

func bundleFromPair(pair []string) (KeyBundle, error) {
	if len(pair) != 2 {
		return KeyBundle{}, fmt.Errorf("expected 2 keys, got %d", len(pair))
	}
	encKey, err := base64.StdEncoding.DecodeString(pair[0])
	if err != nil {
		return KeyBundle{}, fmt.Errorf("decode encryption key: %w", err)
	}
	hmacKey, err := base64.StdEncoding.DecodeString(pair[1])
	if err != nil {
		return KeyBundle{}, fmt.Errorf("decode hmac key: %w", err)
	}
	return NewKeyBundle(encKey, hmacKey)
}
