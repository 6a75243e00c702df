package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
)

// newAESGCM creates an AES-256-GCM AEAD.
func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
