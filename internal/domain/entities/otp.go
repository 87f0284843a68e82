package entities

import "time"

// OneTimePassword is a short-lived single-use credential for the QR/link
// pairing flow. Secret is only ever handed out once, by Generate.
type OneTimePassword struct {
	Hash      string    `json:"hash"`
	Secret    []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the password is past its TTL at the given time.
func (p OneTimePassword) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
