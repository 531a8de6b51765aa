package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen    = 32
	kdfRounds = 4096
	kdfSalt   = "streamlens.credentials.v1"
)

// Cipher seals and opens credential payloads with AES-256-GCM. The key
// is derived from the process master secret, never stored.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(masterSecret []byte) (*Cipher, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("empty master secret")
	}
	key := pbkdf2.Key(masterSecret, []byte(kdfSalt), kdfRounds, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext, prepending the random nonce to the blob.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Cipher) Open(blob []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(blob) < ns {
		return nil, fmt.Errorf("blob too short")
	}
	return c.aead.Open(nil, blob[:ns], blob[ns:], nil)
}
