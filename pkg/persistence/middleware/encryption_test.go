package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/persistence/middleware"
	"github.com/aretw0/observer/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.Store, active []byte, fallback ...[]byte) ports.Store {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunStoreContract(t, encrypted(t, memory.NewStore(), generateKey(t)))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := encrypted(t, underlying, generateKey(t))

	require.NoError(t, store.Put(ctx, "User", 1, domain.Record{"secret": "my-secret-sauce", "age": 42}))

	raw, err := underlying.Get(ctx, "User", 1)
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret")
	assert.Contains(t, raw, middleware.EnvelopeField)

	rec, err := store.Get(ctx, "User", 1)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", rec["secret"])
	assert.Equal(t, int64(42), rec["age"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := encrypted(t, underlying, oldKey)
	require.NoError(t, oldStore.Put(ctx, "User", 1, domain.Record{"data": "old"}))

	newStore := encrypted(t, underlying, newKey, oldKey)
	rec, err := newStore.Get(ctx, "User", 1)
	require.NoError(t, err)
	assert.Equal(t, "old", rec["data"])

	require.NoError(t, newStore.Put(ctx, "User", 1, domain.Record{"data": "new"}))
	_, err = oldStore.Get(ctx, "User", 1)
	assert.Error(t, err, "rows sealed with the new key cannot be read with the old one")
}

func TestEncryptionMiddleware_PlainRow(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Put(ctx, "User", 1, domain.Record{"name": "plain"}))

	_, err := encrypted(t, underlying, generateKey(t)).Get(ctx, "User", 1)
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)

	_, err = encrypted(t, underlying, generateKey(t)).Get(ctx, "User", 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)
}
