package cryptfile

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"math/bits"
)

// uint128 represents the container nonce and derived counter values as an
// unsigned 128-bit integer. Arithmetic wraps at 2^128.
type uint128 struct {
	lo, hi uint64
}

// unpackUint128 decodes the on-disk representation: two little-endian
// 64-bit halves, low half first.
func unpackUint128(b []byte) uint128 {
	return uint128{
		lo: binary.LittleEndian.Uint64(b[0:8]),
		hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// pack encodes u in the on-disk representation.
func (u uint128) pack() [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], u.lo)
	binary.LittleEndian.PutUint64(b[8:16], u.hi)
	return b
}

// add returns u+n mod 2^128.
func (u uint128) add(n uint64) uint128 {
	lo, carry := bits.Add64(u.lo, n, 0)
	hi, _ := bits.Add64(u.hi, 0, carry)
	return uint128{lo: lo, hi: hi}
}

// counterIV encodes u as the initial counter block for cipher.NewCTR,
// which increments the IV as a big-endian integer.
func (u uint128) counterIV() [aes.BlockSize]byte {
	var iv [aes.BlockSize]byte
	binary.BigEndian.PutUint64(iv[0:8], u.hi)
	binary.BigEndian.PutUint64(iv[8:16], u.lo)
	return iv
}

// counterAt returns the counter value for the keystream block containing
// plaintext offset off: (nonce + off/16) mod 2^128.
func counterAt(nonce uint128, off int64) uint128 {
	return nonce.add(uint64(off) / aes.BlockSize)
}

// keystreamAt returns a CTR stream positioned at absolute plaintext offset
// off. cipher.NewCTR has no keystream seek, so the initial counter is
// recomputed from the offset and the intra-block remainder is consumed
// with a throwaway XORKeyStream.
func keystreamAt(block cipher.Block, nonce uint128, off int64) cipher.Stream {
	iv := counterAt(nonce, off).counterIV()
	stream := cipher.NewCTR(block, iv[:])
	if skip := off % aes.BlockSize; skip > 0 {
		var scratch [aes.BlockSize]byte
		stream.XORKeyStream(scratch[:skip], scratch[:skip])
	}
	return stream
}
