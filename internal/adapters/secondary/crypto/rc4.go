// Package crypto implements the stream cipher codec shared with paired
// debugger clients. The wire protocol uses an RC4-style keyed stream
// cipher with no IV: the pairing key is the only secret material.
package crypto

import (
	"crypto/rc4"
	"encoding/base64"
	"fmt"

	"github.com/monaca/localkit/internal/domain/entities"
)

// Codec encrypts and decrypts payloads with a symmetric pairing key.
type Codec struct{}

// NewCodec creates a stream cipher codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Encrypt enciphers plaintext with the given key.
func (c *Codec) Encrypt(plain []byte, key string) ([]byte, error) {
	return c.apply(plain, key)
}

// Decrypt deciphers ciphertext with the given key. RC4 is symmetric, so
// this is the same keystream application as Encrypt; malformed input is
// caught at the transport encoding layer (DecryptString).
func (c *Codec) Decrypt(cipher []byte, key string) ([]byte, error) {
	return c.apply(cipher, key)
}

func (c *Codec) apply(data []byte, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("empty pairing key: %w", entities.ErrInvalidKey)
	}

	cipher, err := rc4.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("keying cipher: %w", entities.ErrInvalidKey)
	}

	out := make([]byte, len(data))
	cipher.XORKeyStream(out, data)
	return out, nil
}

// EncryptString enciphers plaintext and base64-encodes the result for
// header and frame transport.
func (c *Codec) EncryptString(plain, key string) (string, error) {
	out, err := c.Encrypt([]byte(plain), key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptString base64-decodes and deciphers a transport string. Malformed
// base64 fails with ErrDecode so callers can distinguish a bad pairing
// from an internal bug.
func (c *Codec) DecryptString(cipher, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cipher)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", entities.ErrDecode)
	}

	out, err := c.Decrypt(raw, key)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
