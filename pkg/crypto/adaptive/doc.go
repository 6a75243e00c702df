// Package adaptive provides authenticated encryption that picks its
// algorithm from the platform.
//
// Supported algorithms:
//
//   - AES-256-GCM: preferred where Go uses hardware AES (amd64, arm64)
//   - ChaCha20-Poly1305: everywhere else
//
// Sealed messages start with a one-byte algorithm tag followed by the
// nonce, so a message sealed on one platform opens on any other with the
// same key:
//
//	key, err := adaptive.DeriveKey(passphrase, "my context")
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
