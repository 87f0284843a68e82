package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/monaca/localkit/internal/domain/ports"
)

// PairingStore holds the clientIdHash → pairing key map, persisted as a
// whole on every mutation. One key per client identity; last writer wins.
type PairingStore struct {
	account ports.AccountService
	persist ports.PairingPersistence
	logger  *slog.Logger

	mu   sync.Mutex
	keys map[string]string
}

// NewPairingStore creates a store, loading any previously persisted keys.
func NewPairingStore(account ports.AccountService, persist ports.PairingPersistence, logger *slog.Logger) (*PairingStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	keys, err := persist.Load()
	if err != nil {
		return nil, fmt.Errorf("loading pairing keys: %w", err)
	}
	if keys == nil {
		keys = make(map[string]string)
	}

	return &PairingStore{
		account: account,
		persist: persist,
		logger:  logger.With("component", "pairing"),
		keys:    keys,
	}, nil
}

// RequestPairingKey exchanges a client request token for a fresh pairing
// key via the account service, then stores and persists the mapping. On
// any failure no persistent change is made.
func (s *PairingStore) RequestPairingKey(ctx context.Context, requestToken, clientIDHash string) (string, error) {
	key, err := s.account.ExchangePairingKey(ctx, requestToken, clientIDHash)
	if err != nil {
		return "", fmt.Errorf("exchanging pairing key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.keys[clientIDHash]
	s.keys[clientIDHash] = key

	if err := s.persist.Save(s.keys); err != nil {
		// Roll back the in-memory map so memory and disk stay consistent.
		if had {
			s.keys[clientIDHash] = prev
		} else {
			delete(s.keys, clientIDHash)
		}
		return "", fmt.Errorf("persisting pairing keys: %w", err)
	}

	s.logger.Info("paired client", slog.String("client_id_hash", clientIDHash))
	return key, nil
}

// Put records a pairing key issued out of band, such as the OTP-redeemed
// QR flow, and persists the mapping.
func (s *PairingStore) Put(clientIDHash, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.keys[clientIDHash]
	s.keys[clientIDHash] = key

	if err := s.persist.Save(s.keys); err != nil {
		if had {
			s.keys[clientIDHash] = prev
		} else {
			delete(s.keys, clientIDHash)
		}
		return fmt.Errorf("persisting pairing keys: %w", err)
	}

	s.logger.Info("paired client", slog.String("client_id_hash", clientIDHash))
	return nil
}

// Get returns the pairing key for a client identity.
func (s *PairingStore) Get(clientIDHash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[clientIDHash]
	return key, ok
}

// Clear wipes all pairing relationships and persists the empty store.
// Used for account logout.
func (s *PairingStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := make(map[string]string)
	if err := s.persist.Save(empty); err != nil {
		return fmt.Errorf("persisting pairing keys: %w", err)
	}

	s.keys = empty
	s.logger.Info("cleared pairing store")
	return nil
}

// Count returns the number of paired clients.
func (s *PairingStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
