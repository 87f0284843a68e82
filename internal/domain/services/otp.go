package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/monaca/localkit/internal/domain/entities"
)

const otpSecretLen = 20

// OTPManager issues and validates short-lived single-use credentials for
// the QR/link pairing flow. Records are keyed by the digest of the secret
// and deleted on first successful validation, which enforces at-most-once
// redemption without a separate revocation step.
type OTPManager struct {
	mu        sync.Mutex
	passwords map[string]entities.OneTimePassword
	now       func() time.Time
}

// NewOTPManager creates an empty OTP manager.
func NewOTPManager() *OTPManager {
	return &OTPManager{
		passwords: make(map[string]entities.OneTimePassword),
		now:       time.Now,
	}
}

// Generate creates a new one-time password valid for ttlMillis. The raw
// secret is only ever returned here.
func (m *OTPManager) Generate(ttlMillis int64) (entities.OneTimePassword, error) {
	if ttlMillis <= 0 {
		return entities.OneTimePassword{}, fmt.Errorf("ttl must be positive: %w", entities.ErrInvalidArgument)
	}

	secret := make([]byte, otpSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return entities.OneTimePassword{}, fmt.Errorf("generating secret: %w", err)
	}

	sum := sha256.Sum256(secret)
	now := m.now()

	otp := entities.OneTimePassword{
		Hash:      hex.EncodeToString(sum[:]),
		Secret:    secret,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttlMillis) * time.Millisecond),
	}

	m.mu.Lock()
	m.passwords[otp.Hash] = otp
	m.mu.Unlock()

	return otp, nil
}

// Validate consumes the password with the given hash. It fails with
// ErrNotFound for unknown hashes and ErrExpired past the TTL; on success
// the record is deleted so a second validation fails with ErrNotFound.
func (m *OTPManager) Validate(passwordHash string) (entities.OneTimePassword, error) {
	if passwordHash == "" {
		return entities.OneTimePassword{}, fmt.Errorf("password hash required: %w", entities.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	otp, ok := m.passwords[passwordHash]
	if !ok {
		return entities.OneTimePassword{}, fmt.Errorf("password %s: %w", passwordHash, entities.ErrNotFound)
	}

	if otp.Expired(m.now()) {
		return entities.OneTimePassword{}, fmt.Errorf("password %s: %w", passwordHash, entities.ErrExpired)
	}

	delete(m.passwords, passwordHash)
	return otp, nil
}

// GeneratePairingKey returns 20 random bytes hex-encoded, a convenience
// credential for the manual pairing flow. It is independent of the OTP
// table.
func (m *OTPManager) GeneratePairingKey() (string, error) {
	key := make([]byte, otpSecretLen)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generating pairing key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// PurgeExpired drops expired entries and reports how many were removed.
// Nothing schedules this; expiry is otherwise checked lazily on Validate.
func (m *OTPManager) PurgeExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for hash, otp := range m.passwords {
		if otp.Expired(now) {
			delete(m.passwords, hash)
			removed++
		}
	}
	return removed
}
