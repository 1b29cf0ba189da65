package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewKeyBundle_LengthChecks(t *testing.T) {
	good := bytes.Repeat([]byte{0x01}, 32)

	if _, err := NewKeyBundle(good, good[:16]); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("short hmac key: got %v, want ErrInvalidKeyLength", err)
	}
	if _, err := NewKeyBundle(nil, good); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("nil encryption key: got %v, want ErrInvalidKeyLength", err)
	}
	if _, err := NewKeyBundle(good, good); err != nil {
		t.Fatalf("valid keys: unexpected error %v", err)
	}
}

func TestNewKeyBundle_CopiesKeyMaterial(t *testing.T) {
	enc := bytes.Repeat([]byte{0x01}, 32)
	mac := bytes.Repeat([]byte{0x02}, 32)

	b, err := NewKeyBundle(enc, mac)
	if err != nil {
		t.Fatalf("NewKeyBundle error: %v", err)
	}

	other, _ := NewKeyBundle(bytes.Repeat([]byte{0x01}, 32), bytes.Repeat([]byte{0x02}, 32))

	// Mutating the caller's slices must not reach into the bundle.
	enc[0] = 0xFF
	if !b.Equal(other) {
		t.Fatalf("bundle shares memory with caller slice")
	}
}

func TestGenerateKeyBundle_Randomness(t *testing.T) {
	b1, err := GenerateKeyBundle()
	if err != nil {
		t.Fatalf("GenerateKeyBundle error: %v", err)
	}
	b2, err := GenerateKeyBundle()
	if err != nil {
		t.Fatalf("GenerateKeyBundle error: %v", err)
	}
	if b1.Equal(b2) {
		t.Fatalf("expected two generated bundles to differ")
	}
}

func TestBundleFromSyncKey_Deterministic(t *testing.T) {
	syncKey := bytes.Repeat([]byte{0xC0}, 16)

	b1, err := BundleFromSyncKey(syncKey, "user@example.com")
	if err != nil {
		t.Fatalf("BundleFromSyncKey error: %v", err)
	}
	b2, err := BundleFromSyncKey(syncKey, "user@example.com")
	if err != nil {
		t.Fatalf("BundleFromSyncKey error: %v", err)
	}
	if !b1.Equal(b2) {
		t.Fatalf("same inputs must derive the same bundle")
	}

	b3, err := BundleFromSyncKey(syncKey, "other@example.com")
	if err != nil {
		t.Fatalf("BundleFromSyncKey error: %v", err)
	}
	if b1.Equal(b3) {
		t.Fatalf("different accounts must derive different bundles")
	}
}

func TestBundleFromSyncKey_RejectsWrongLength(t *testing.T) {
	if _, err := BundleFromSyncKey([]byte("short"), "user"); !errors.Is(err, ErrInvalidSyncKey) {
		t.Fatalf("got %v, want ErrInvalidSyncKey", err)
	}
}

func TestDecodeRecoveryKey(t *testing.T) {
	// 16 bytes of 0xFF is base32 "77777777777777777777777774" (26 chars).
	want := bytes.Repeat([]byte{0xFF}, 16)

	got, err := DecodeRecoveryKey("7777777-7777777-7777777-77774")
	if err != nil {
		t.Fatalf("DecodeRecoveryKey error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("decoded key mismatch: got %x want %x", got, want)
	}
}

func TestDecodeRecoveryKey_FriendlySubstitutions(t *testing.T) {
	// The friendly alphabet writes l as 8 and o as 9; both spellings must
	// decode identically.
	plain, err := DecodeRecoveryKey("aaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("DecodeRecoveryKey error: %v", err)
	}

	k1, err := DecodeRecoveryKey("a8aaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("DecodeRecoveryKey error: %v", err)
	}
	k2, err := DecodeRecoveryKey("alaaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("DecodeRecoveryKey error: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("8 and l must decode identically")
	}
	if bytes.Equal(plain, k1) {
		t.Fatalf("sanity: distinct keys expected")
	}
}

func TestDecodeRecoveryKey_Invalid(t *testing.T) {
	cases := []string{"", "zz", "!!!!!!!!!!!!!!!!!!!!!!!!!!", "aaaa"}
	for _, in := range cases {
		if _, err := DecodeRecoveryKey(in); !errors.Is(err, ErrInvalidSyncKey) {
			t.Fatalf("%q: got %v, want ErrInvalidSyncKey", in, err)
		}
	}
}
