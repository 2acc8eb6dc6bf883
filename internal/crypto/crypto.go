// Package crypto seals the session token the CLI keeps on disk.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// tokenAD is the associated data of every sealed token.
var tokenAD = []byte("dktadmin-session-token")

// Cipher seals strings with XChaCha20-Poly1305.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a hex-encoded 32-byte key.
// Returns nil if key is empty (tokens are stored in the clear).
func NewCipher(hexKey string) (*Cipher, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding hex key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// GenerateKey returns a random hex-encoded key for NewCipher.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Seal returns base64url(nonce || ciphertext).
// A nil Cipher returns plaintext unchanged.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), tokenAD)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. A nil Cipher returns sealed unchanged.
func (c *Cipher) Open(sealed string) (string, error) {
	if c == nil {
		return sealed, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed token: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("sealed token too short")
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], tokenAD)
	if err != nil {
		return "", fmt.Errorf("opening sealed token: %w", err)
	}
	return string(plaintext), nil
}
