package services

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monaca/localkit/internal/domain/entities"
)

func TestOTPManager_Generate(t *testing.T) {
	t.Run("valid ttl", func(t *testing.T) {
		m := NewOTPManager()

		otp, err := m.Generate(60000)
		require.NoError(t, err)

		assert.Len(t, otp.Secret, 20)
		assert.Len(t, otp.Hash, 64)
		assert.True(t, otp.ExpiresAt.After(otp.CreatedAt))

		sum := sha256.Sum256(otp.Secret)
		assert.Equal(t, hex.EncodeToString(sum[:]), otp.Hash)
	})

	t.Run("zero ttl", func(t *testing.T) {
		m := NewOTPManager()

		_, err := m.Generate(0)
		assert.ErrorIs(t, err, entities.ErrInvalidArgument)
	})

	t.Run("negative ttl", func(t *testing.T) {
		m := NewOTPManager()

		_, err := m.Generate(-500)
		assert.ErrorIs(t, err, entities.ErrInvalidArgument)
	})

	t.Run("secrets are unique", func(t *testing.T) {
		m := NewOTPManager()

		first, err := m.Generate(60000)
		require.NoError(t, err)
		second, err := m.Generate(60000)
		require.NoError(t, err)

		assert.NotEqual(t, first.Hash, second.Hash)
		assert.NotEqual(t, first.Secret, second.Secret)
	})
}

func TestOTPManager_Validate(t *testing.T) {
	t.Run("succeeds exactly once", func(t *testing.T) {
		m := NewOTPManager()

		otp, err := m.Generate(60000)
		require.NoError(t, err)

		got, err := m.Validate(otp.Hash)
		require.NoError(t, err)
		assert.Equal(t, otp.Secret, got.Secret)

		_, err = m.Validate(otp.Hash)
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("empty hash", func(t *testing.T) {
		m := NewOTPManager()

		_, err := m.Validate("")
		assert.ErrorIs(t, err, entities.ErrInvalidArgument)
	})

	t.Run("unknown hash", func(t *testing.T) {
		m := NewOTPManager()

		_, err := m.Validate("deadbeef")
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("expired password", func(t *testing.T) {
		m := NewOTPManager()

		now := time.Now()
		m.now = func() time.Time { return now }

		otp, err := m.Generate(100)
		require.NoError(t, err)

		m.now = func() time.Time { return now.Add(101 * time.Millisecond) }

		_, err = m.Validate(otp.Hash)
		assert.ErrorIs(t, err, entities.ErrExpired)
	})

	t.Run("expired record is not consumed as valid later", func(t *testing.T) {
		m := NewOTPManager()

		now := time.Now()
		m.now = func() time.Time { return now }

		otp, err := m.Generate(50)
		require.NoError(t, err)

		m.now = func() time.Time { return now.Add(time.Second) }
		_, err = m.Validate(otp.Hash)
		assert.ErrorIs(t, err, entities.ErrExpired)

		// Rewinding the clock must not revive it either once purged.
		assert.Equal(t, 1, m.PurgeExpired())

		m.now = func() time.Time { return now }
		_, err = m.Validate(otp.Hash)
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestOTPManager_GeneratePairingKey(t *testing.T) {
	m := NewOTPManager()

	key, err := m.GeneratePairingKey()
	require.NoError(t, err)
	assert.Len(t, key, 40)

	_, err = hex.DecodeString(key)
	assert.NoError(t, err)

	other, err := m.GeneratePairingKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestOTPManager_PurgeExpired(t *testing.T) {
	m := NewOTPManager()

	now := time.Now()
	m.now = func() time.Time { return now }

	expired, err := m.Generate(100)
	require.NoError(t, err)
	live, err := m.Generate(60000)
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(time.Second) }

	assert.Equal(t, 1, m.PurgeExpired())
	assert.Equal(t, 0, m.PurgeExpired())

	_, err = m.Validate(expired.Hash)
	assert.ErrorIs(t, err, entities.ErrNotFound)

	_, err = m.Validate(live.Hash)
	assert.NoError(t, err)
}
