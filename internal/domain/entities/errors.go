package entities

import "errors"

// Domain error taxonomy. Handlers map these to HTTP status codes at the
// gateway boundary; everything below that boundary returns them wrapped
// with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidArgument indicates missing or malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates missing or invalid pairing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates an unknown project, file, or password.
	ErrNotFound = errors.New("not found")

	// ErrExpired indicates a one-time password past its TTL.
	ErrExpired = errors.New("expired")

	// ErrOutOfBounds indicates a path escaping the project root.
	ErrOutOfBounds = errors.New("path out of bounds")

	// ErrDecode indicates malformed ciphertext.
	ErrDecode = errors.New("decode error")

	// ErrInvalidKey indicates an empty or absent cipher key.
	ErrInvalidKey = errors.New("invalid key")

	// ErrConflict indicates a non-empty destination on project scaffolding.
	ErrConflict = errors.New("conflict")

	// ErrNoSuchClient indicates a push message targeted at a client id
	// that is not connected.
	ErrNoSuchClient = errors.New("no such client")
)
