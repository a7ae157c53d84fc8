// Package cryptfile implements a transparent random-access encryption
// layer over a plain file: an encrypted container supporting
// arbitrary-offset reads, writes and truncation with ordinary
// seekable-stream semantics.
//
// # Overview
//
// A container is encrypted with AES-256 in counter mode. The keystream
// position is derived deterministically from the absolute byte offset, so
// any region can be read or rewritten in place without touching the rest
// of the file. Seeking or truncating past the end of file materializes the
// hole as encrypted zero padding, keeping every byte position
// counter-consistent.
//
// # Basic Usage
//
//	key := make([]byte, 32) // from your key management
//
//	f, err := cryptfile.Open("/data/secret.bin", key, cryptfile.Create)
//	if err != nil {
//	    panic(err)
//	}
//	f.Write([]byte("hello"))
//	f.Seek(0, io.SeekStart)
//	io.ReadAll(f)
//	f.Close()
//
// Containers can also be layered over any absfs.File via OpenFile, or
// managed as a keyed store of logical names via FS.
//
// # File Format
//
// Encrypted containers use the following format:
//   - Nonce (16 bytes): random 128-bit value, stored as two little-endian
//     64-bit halves, low half first; generated at creation and never
//     regenerated
//   - Ciphertext (variable): plaintext XOR keystream, where the keystream
//     for plaintext offset i is AES-256-CTR with initial counter value
//     (nonce + i/16) mod 2^128, incrementing per 16-byte block and
//     wrapping at 2^128
//
// # Concurrency
//
// One handle is single-threaded: the cursor is handle-local mutable state
// with no internal synchronization. Cross-process access is serialized by
// a whole-file advisory lock taken at open time: shared for read-only
// handles, exclusive for writers, held until Close.
//
// # Security Considerations
//
// This package provides confidentiality only. There is no authentication
// tag: silent bit-flips in the ciphertext decrypt to corrupted plaintext
// undetected. Callers needing integrity must layer it externally.
//
// The key is held in memory while the container is open and the package's
// copy is zeroed on Close. The expanded key schedule inside the cipher
// cannot be zeroed from outside the standard library. Memory dumps,
// side channels and compromised hosts are out of scope.
package cryptfile
