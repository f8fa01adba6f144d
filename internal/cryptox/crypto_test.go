package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext, key, nonce, err := EncryptChunk(plaintext)
	require.NoError(t, err)
	assert.Len(t, key, KeySize)
	assert.Len(t, nonce, 12)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := DecryptChunk(ciphertext, key, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptChunkFreshKeyAndNonce(t *testing.T) {
	plaintext := bytes.Repeat([]byte("a"), 1024)

	_, key1, nonce1, err := EncryptChunk(plaintext)
	require.NoError(t, err)
	_, key2, nonce2, err := EncryptChunk(plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
	assert.NotEqual(t, nonce1, nonce2)
}

func TestDecryptChunkWrongKey(t *testing.T) {
	ciphertext, _, nonce, err := EncryptChunk([]byte("secret"))
	require.NoError(t, err)

	wrongKey := common.GenerateRandByteArray(KeySize)
	_, err = DecryptChunk(ciphertext, wrongKey, nonce)
	assert.True(t, errors.Is(err, common.ErrDecryption))
}

func TestDecryptChunkTampered(t *testing.T) {
	ciphertext, key, nonce, err := EncryptChunk([]byte("secret"))
	require.NoError(t, err)

	ciphertext[0] ^= 0xff
	_, err = DecryptChunk(ciphertext, key, nonce)
	assert.True(t, errors.Is(err, common.ErrDecryption))
}

func TestEncryptChunkEmptyPlaintext(t *testing.T) {
	ciphertext, key, nonce, err := EncryptChunk(nil)
	require.NoError(t, err)

	got, err := DecryptChunk(ciphertext, key, nonce)
	require.NoError(t, err)
	assert.Empty(t, got)
}
