// Package cryptox implements the per-chunk cryptography of the engine.
// Every chunk is sealed independently with AES-256-GCM under a fresh random
// key and a fresh random nonce, so decrypting chunk i needs nothing but its
// own ChunkRecord.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/chunkvault/chunkvault/internal/common"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// EncryptChunk seals plaintext with AES-256-GCM under a newly generated
// random key and nonce.
//
// The key and nonce are returned to the caller for cataloguing alongside the
// chunk; they are never reused for another chunk. The ciphertext includes the
// GCM authentication tag, so tampering is detected at decryption time.
//
// Returns:
//   - ciphertext: the sealed chunk bytes.
//   - key: the random 32-byte AES key.
//   - nonce: the random 12-byte GCM nonce.
//   - err: non-nil if cipher construction fails.
func EncryptChunk(plaintext []byte) (ciphertext, key, nonce []byte, err error) {
	key = common.GenerateRandByteArray(KeySize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = common.GenerateRandByteArray(aesgcm.NonceSize())

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)

	return ciphertext, key, nonce, nil
}

// DecryptChunk opens a chunk sealed by EncryptChunk using the key and nonce
// recorded for it. A ciphertext/key mismatch or any tampering surfaces as
// common.ErrDecryption.
func DecryptChunk(ciphertext, key, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	return plaintext, nil
}
