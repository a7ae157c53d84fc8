package cryptfile

import (
	"crypto/rand"
	"io"
)

// HeaderSize is the size of the container header in bytes. The header
// holds only the nonce; everything after it is ciphertext.
const HeaderSize = 16

// header is the fixed-size container header: a 128-bit nonce generated at
// creation and immutable for the container's lifetime.
type header struct {
	Nonce uint128
}

// newHeader generates a header with a fresh cryptographically random nonce.
func newHeader() (*header, error) {
	var b [HeaderSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, &IOError{Op: "generate nonce", Err: err}
	}
	return &header{Nonce: unpackUint128(b[:])}, nil
}

// WriteTo writes the header to w.
func (h *header) WriteTo(w io.Writer) (int64, error) {
	b := h.Nonce.pack()
	n, err := w.Write(b[:])
	return int64(n), err
}

// readHeader reads and decodes the header from r. A file too short to
// contain a nonce fails with ErrCorruptHeader.
func readHeader(r io.Reader) (*header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrCorruptHeader
		}
		return nil, err
	}
	return &header{Nonce: unpackUint128(b[:])}, nil
}
