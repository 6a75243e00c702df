package adaptive

import (
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"
)

// newChaCha20 creates a ChaCha20-Poly1305 AEAD.
func newChaCha20(key []byte) (cipher.AEAD, error) {
	return chacha20poly1305.New(key)
}
