package keys

import "errors"

var (
	// ErrMalformed indicates a ciphertext of the wrong size or with corrupt padding.
	ErrMalformed = errors.New("malformed ciphertext")

	// ErrKeyUnavailable indicates no usable private key has been loaded.
	ErrKeyUnavailable = errors.New("key unavailable")

	// ErrKeyGeneration indicates a fresh key pair could not be created.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrUnknownPadding indicates an unsupported padding scheme name.
	ErrUnknownPadding = errors.New("unknown padding scheme")
)
