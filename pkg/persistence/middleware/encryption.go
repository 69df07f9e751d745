package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ErrInvalidKey is returned for keys that are not 32 bytes long.
var ErrInvalidKey = errors.New("encryption key must be 32 bytes (AES-256)")

type encryptedBlobs struct {
	next   ports.BlobStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts artifact data at
// rest using AES-GCM. Fingerprints are kept in clear so joins can still
// compare branches without decrypting.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, ErrInvalidKey
		}
	}
	return func(next ports.Datastore) ports.Datastore {
		return &blobWrapper{next: next, wrap: func(b ports.BlobStore) ports.BlobStore {
			return &encryptedBlobs{next: b, config: config}
		}}
	}, nil
}

func (m *encryptedBlobs) Items(ctx context.Context) ([]domain.ArtifactRecord, error) {
	return m.next.Items(ctx)
}

func (m *encryptedBlobs) SaveBlob(ctx context.Context, name string, blob domain.Blob) error {
	ciphertext, err := encrypt(blob.Data, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt artifact %q: %w", name, err)
	}
	return m.next.SaveBlob(ctx, name, domain.Blob{Fingerprint: blob.Fingerprint, Data: ciphertext})
}

func (m *encryptedBlobs) LoadBlob(ctx context.Context, name string) (domain.Blob, error) {
	stored, err := m.next.LoadBlob(ctx, name)
	if err != nil {
		return domain.Blob{}, err
	}
	plainText, err := decryptWithRotation(stored.Data, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Blob{}, fmt.Errorf("failed to decrypt artifact %q: %w", name, err)
	}
	return domain.Blob{Fingerprint: stored.Fingerprint, Data: plainText}, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
