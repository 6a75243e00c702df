package codec

import (
	"errors"
	"fmt"

	"github.com/yndnr/filekv/pkg/crypto/adaptive"
)

// Cipher algorithms used by Sealed.
const (
	CipherAESGCM   = string(adaptive.CipherAESGCM)
	CipherChaCha20 = string(adaptive.CipherChaCha20)
)

const sealedKeyInfo = "filekv sealed document v1"

// ErrSealedTooShort is returned when a sealed payload cannot hold a nonce.
var ErrSealedTooShort = adaptive.ErrShortCiphertext

// Sealed encrypts the output of another codec with an AEAD cipher.
//
// The file holds an algorithm tag, the nonce and the ciphertext. The inner
// codec name is bound as additional data, so a file sealed over JSON does
// not open as YAML.
type Sealed struct {
	inner  Codec
	cipher *adaptive.Cipher
}

// NewSealed wraps inner with a cipher keyed from passphrase. The
// algorithm is picked for the platform; files sealed elsewhere still open.
func NewSealed(inner Codec, passphrase string) (*Sealed, error) {
	return NewSealedWith(inner, passphrase, string(adaptive.Preferred()))
}

// NewSealedWith is NewSealed with an explicit algorithm for new files.
func NewSealedWith(inner Codec, passphrase, alg string) (*Sealed, error) {
	if inner == nil {
		return nil, errors.New("codec: sealed: inner codec is required")
	}
	if passphrase == "" {
		return nil, errors.New("codec: sealed: passphrase is required")
	}

	key, err := adaptive.DeriveKey(passphrase, sealedKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("codec: sealed: %w", err)
	}
	c, err := adaptive.NewWithType(key, adaptive.CipherType(alg))
	if err != nil {
		return nil, fmt.Errorf("codec: sealed: %w", err)
	}
	return &Sealed{inner: inner, cipher: c}, nil
}

// Name returns "sealed+<inner>".
func (s *Sealed) Name() string { return "sealed+" + s.inner.Name() }

// Algorithm returns the cipher used for new files.
func (s *Sealed) Algorithm() string { return string(s.cipher.Type()) }

// Encode encodes doc with the inner codec and seals the result.
func (s *Sealed) Encode(doc map[string]any) ([]byte, error) {
	plain, err := s.inner.Encode(doc)
	if err != nil {
		return nil, err
	}
	sealed, err := s.cipher.Encrypt(plain, []byte(s.inner.Name()))
	if err != nil {
		return nil, fmt.Errorf("codec: sealed: %w", err)
	}
	return sealed, nil
}

// Decode opens data and decodes it with the inner codec.
func (s *Sealed) Decode(data []byte) (map[string]any, error) {
	plain, err := s.cipher.Decrypt(data, []byte(s.inner.Name()))
	if errors.Is(err, adaptive.ErrShortCiphertext) {
		return nil, ErrSealedTooShort
	}
	if err != nil {
		return nil, fmt.Errorf("codec: sealed: open: %w", err)
	}
	return s.inner.Decode(plain)
}
