package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/ports"
)

// EnvelopeField is the only field of an encrypted row as seen by the wrapped store.
const EnvelopeField = "__encrypted__"

// ErrMissingEnvelope is returned when an encrypted store reads a plain row.
var ErrMissingEnvelope = errors.New("row is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new rows.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are old keys tried when decryption with ActiveKey fails.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	ports.Store
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals every row with AES-GCM.
// Keys, sequences and join links stay in clear so the wrapped store can index them.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	return func(next ports.Store) ports.Store {
		return &encryptionMiddleware{Store: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Put(ctx context.Context, typeName string, pk domain.PK, record domain.Record) error {
	if record == nil {
		record = domain.Record{}
	}
	plainText, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt row: %w", err)
	}

	envelope := domain.Record{EnvelopeField: base64.StdEncoding.EncodeToString(ciphertext)}
	return m.Store.Put(ctx, typeName, pk, envelope)
}

func (m *encryptionMiddleware) Get(ctx context.Context, typeName string, pk domain.PK) (domain.Record, error) {
	envelope, err := m.Store.Get(ctx, typeName, pk)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope[EnvelopeField].(string)
	if !ok {
		return nil, fmt.Errorf("%s#%d: %w", typeName, pk, ErrMissingEnvelope)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt row: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(plainText, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted row: %w", err)
	}
	if rec == nil {
		rec = domain.Record{}
	}
	return domain.NormalizeRecord(rec), nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
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
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
