package ports

// Codec encrypts and decrypts byte payloads with a symmetric pairing key.
// Every component that talks to a paired client goes through it.
type Codec interface {
	Encrypt(plain []byte, key string) ([]byte, error)
	Decrypt(cipher []byte, key string) ([]byte, error)
	// EncryptString and DecryptString wrap the ciphertext in base64 for
	// header and frame transport.
	EncryptString(plain, key string) (string, error)
	DecryptString(cipher, key string) (string, error)
}

// PairingStore resolves a client identity to its pairing key.
type PairingStore interface {
	Get(clientIDHash string) (string, bool)
}
