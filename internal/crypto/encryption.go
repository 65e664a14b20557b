package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// BundleEncryptor seals evidence archives with AES-256-GCM before they leave
// the process (S3 mirror). The nonce is prepended to the ciphertext.
type BundleEncryptor struct {
	key []byte
}

// NewBundleEncryptor creates an encryptor from a base64 encoded 32 byte key
func NewBundleEncryptor(keyBase64 string) (*BundleEncryptor, error) {
	if keyBase64 == "" {
		return nil, errors.New("archive encryption key is required")
	}
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode archive key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("archive key must be 32 bytes for AES-256, got %d", len(key))
	}
	return &BundleEncryptor{key: key}, nil
}

// Seal encrypts plaintext
func (e *BundleEncryptor) Seal(plaintext []byte) ([]byte, error) {
	aesGCM, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aesGCM.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed archive
func (e *BundleEncryptor) Open(sealed []byte) ([]byte, error) {
	aesGCM, err := e.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := aesGCM.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func (e *BundleEncryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
