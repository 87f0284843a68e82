package ports

// PairingPersistence loads and saves the pairing-key map as a whole.
// Saves are whole-file rewrites; there are no partial updates.
type PairingPersistence interface {
	Load() (map[string]string, error)
	Save(keys map[string]string) error
}
