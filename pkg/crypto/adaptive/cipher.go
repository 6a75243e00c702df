package adaptive

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/hkdf"
)

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// KeySize is the key length in bytes for every algorithm.
const KeySize = 32

var (
	// ErrShortCiphertext is returned when a message cannot hold the tag,
	// the nonce and the authenticator.
	ErrShortCiphertext = errors.New("adaptive: ciphertext too short")

	// ErrUnknownCipher is returned for an unsupported algorithm or tag.
	ErrUnknownCipher = errors.New("adaptive: unknown cipher")
)

// tags identify the algorithm in the first byte of a sealed message.
var tags = map[CipherType]byte{
	CipherAESGCM:   1,
	CipherChaCha20: 2,
}

// Cipher seals messages with its preferred algorithm and opens messages
// sealed with any supported algorithm under the same key. It is safe for
// concurrent use.
type Cipher struct {
	typ   CipherType
	aeads map[byte]cipher.AEAD
}

// Preferred returns the algorithm New selects on this platform.
func Preferred() CipherType {
	// Go's crypto/aes uses AES-NI on amd64 and the ARMv8 crypto
	// extensions on arm64.
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// New creates a cipher with the preferred algorithm.
func New(key []byte) (*Cipher, error) {
	return NewWithType(key, Preferred())
}

// NewWithType creates a cipher that seals with cipherType.
func NewWithType(key []byte, cipherType CipherType) (*Cipher, error) {
	if _, ok := tags[cipherType]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, cipherType)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: key must be %d bytes, got %d", KeySize, len(key))
	}

	aesgcm, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	chacha, err := newChaCha20(key)
	if err != nil {
		return nil, err
	}

	return &Cipher{
		typ: cipherType,
		aeads: map[byte]cipher.AEAD{
			tags[CipherAESGCM]:   aesgcm,
			tags[CipherChaCha20]: chacha,
		},
	}, nil
}

// Type returns the algorithm used by Encrypt.
func (c *Cipher) Type() CipherType {
	return c.typ
}

// Overhead returns how many bytes Encrypt adds to a plaintext.
func (c *Cipher) Overhead() int {
	aead := c.aeads[tags[c.typ]]
	return 1 + aead.NonceSize() + aead.Overhead()
}

// Encrypt seals plaintext. additionalData is authenticated but not stored.
func (c *Cipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	tag := tags[c.typ]
	aead := c.aeads[tag]

	out := make([]byte, 1+aead.NonceSize(), c.Overhead()+len(plaintext))
	out[0] = tag
	nonce := out[1:]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("adaptive: nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, withTag(tag, additionalData)), nil
}

// Decrypt opens a message produced by Encrypt with any algorithm.
func (c *Cipher) Decrypt(sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) < c.Overhead() {
		return nil, ErrShortCiphertext
	}
	tag := sealed[0]
	aead, ok := c.aeads[tag]
	if !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownCipher, tag)
	}

	ns := aead.NonceSize()
	if len(sealed) < 1+ns+aead.Overhead() {
		return nil, ErrShortCiphertext
	}
	return aead.Open(nil, sealed[1:1+ns], sealed[1+ns:], withTag(tag, additionalData))
}

// withTag binds the algorithm tag into the authenticated data.
func withTag(tag byte, additionalData []byte) []byte {
	ad := make([]byte, 0, 1+len(additionalData))
	ad = append(ad, tag)
	return append(ad, additionalData...)
}

// DeriveKey stretches secret into a KeySize key with HKDF-SHA256. info
// separates keys derived from the same secret for different purposes.
func DeriveKey(secret, info string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("adaptive: secret is required")
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("adaptive: derive key: %w", err)
	}
	return key, nil
}
