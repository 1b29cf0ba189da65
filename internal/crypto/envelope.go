// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/weavesync/weavesync/models"
)

// Encrypt encrypts plaintext under the bundle's encryption key with
// AES-256-CBC and a fresh random IV, then seals the result with an HMAC over
// the base64-encoded ciphertext. Callers never supply the IV.
func Encrypt(plaintext []byte, bundle KeyBundle) (models.CryptoPayload, error) {
	block, err := aes.NewCipher(bundle.encryptionKey)
	if err != nil {
		return models.CryptoPayload{}, fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return models.CryptoPayload{}, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	ciphertextB64 := base64.StdEncoding.EncodeToString(ciphertext)
	return models.CryptoPayload{
		Ciphertext: ciphertextB64,
		IV:         base64.StdEncoding.EncodeToString(iv),
		HMAC:       GenerateHMAC(ciphertextB64, bundle),
	}, nil
}

// Decrypt verifies the payload's HMAC and, only if it matches, decrypts the
// ciphertext. Fails closed: a mismatch returns ErrHMACMismatch without
// touching the cipher, and corrupt padding after decryption returns the
// distinct ErrBadPadding.
func Decrypt(payload models.CryptoPayload, bundle KeyBundle) ([]byte, error) {
	if !VerifyHMAC(payload, bundle) {
		return nil, ErrHMACMismatch
	}

	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext: %w", ErrMalformedEnvelope, err)
	}
	iv, err := base64.StdEncoding.DecodeString(payload.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: decode iv: %w", ErrMalformedEnvelope, err)
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrMalformedEnvelope
	}

	block, err := aes.NewCipher(bundle.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return pkcs7Unpad(padded, aes.BlockSize)
}

// GenerateHMAC computes the hex HMAC-SHA256 of the base64-encoded ciphertext
// string. The HMAC deliberately covers the base64 text rather than the raw
// bytes: that is what interoperating clients store on the server.
func GenerateHMAC(ciphertextB64 string, bundle KeyBundle) string {
	mac := hmac.New(sha256.New, bundle.hmacKey)
	mac.Write([]byte(ciphertextB64))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC recomputes the payload's HMAC and compares it in constant time.
func VerifyHMAC(payload models.CryptoPayload, bundle KeyBundle) bool {
	want, err := hex.DecodeString(payload.HMAC)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, bundle.hmacKey)
	mac.Write([]byte(payload.Ciphertext))
	return hmac.Equal(mac.Sum(nil), want)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}
