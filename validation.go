package cryptfile

// Input validation helpers, checked once at the open boundary.

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// validateKey checks the key length before any file I/O occurs.
func validateKey(key []byte) error {
	if len(key) != KeySize {
		return ErrInvalidKey
	}
	return nil
}

// validateMode checks that m is one of the supported open modes.
func validateMode(m Mode) error {
	switch m {
	case ReadOnly, ReadWrite, Create:
		return nil
	}
	return ErrInvalidMode
}
