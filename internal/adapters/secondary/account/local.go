// Package account provides the local account-service collaborator used by
// the manual pairing flow. The cloud exchange lives behind the same port
// in the hosted product.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/monaca/localkit/internal/domain/entities"
)

const keyLen = 20

// LocalService issues pairing keys directly, without a cloud round trip.
// The request token is still required so the flow matches the hosted
// exchange contract.
type LocalService struct{}

// NewLocalService creates a local account service.
func NewLocalService() *LocalService {
	return &LocalService{}
}

// ExchangePairingKey issues a fresh pairing key scoped to clientIDHash.
func (s *LocalService) ExchangePairingKey(ctx context.Context, requestToken, clientIDHash string) (string, error) {
	if requestToken == "" || clientIDHash == "" {
		return "", fmt.Errorf("request token and client id hash required: %w", entities.ErrInvalidArgument)
	}

	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generating pairing key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
