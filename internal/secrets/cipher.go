package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Cipher seals provider key secrets before they reach the store and unseals
// them when a key is handed to a caller.
type Cipher interface {
	Encrypt(secret string) ([]byte, error)
	Decrypt(blob []byte) (string, error)
}

// Plaintext stores secrets as-is. It exists so deployments without key
// material still run; it is not suitable for production.
type Plaintext struct{}

func (Plaintext) Encrypt(secret string) ([]byte, error) { return []byte(secret), nil }

func (Plaintext) Decrypt(blob []byte) (string, error) { return string(blob), nil }

// AESGCM seals secrets with AES-256-GCM, nonce prefixed to the ciphertext.
type AESGCM struct {
	key []byte
}

func NewAESGCM(key string) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, errors.New("aes key length must be 32 bytes")
	}
	return &AESGCM{key: []byte(key)}, nil
}

func (c *AESGCM) Encrypt(secret string) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return aesGCM.Seal(nonce, nonce, []byte(secret), nil), nil
}

func (c *AESGCM) Decrypt(blob []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(blob) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// FromConfig builds the configured cipher implementation.
func FromConfig(name, aesKey string) (Cipher, error) {
	switch name {
	case "", "plaintext":
		return Plaintext{}, nil
	case "aesgcm":
		return NewAESGCM(aesKey)
	default:
		return nil, fmt.Errorf("unknown secrets cipher %q", name)
	}
}
