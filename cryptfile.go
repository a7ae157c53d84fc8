package cryptfile

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
	"os"

	"github.com/absfs/absfs"
	"github.com/gofrs/flock"
	"github.com/valyala/bytebufferpool"
)

// Mode selects the capability of an open container handle. The mode is
// checked once at open time; the returned handle enforces it on every
// mutating operation.
type Mode uint8

const (
	// ReadOnly opens an existing container for reading under a shared lock.
	ReadOnly Mode = iota
	// ReadWrite opens an existing container for reading and writing under
	// an exclusive lock.
	ReadWrite
	// Create creates (or truncates) a container with a fresh nonce under an
	// exclusive lock.
	Create
)

// String returns the string representation of the open mode
func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case Create:
		return "create"
	default:
		return "unknown"
	}
}

func (m Mode) writable() bool {
	return m != ReadOnly
}

func (m Mode) openFlag() int {
	switch m {
	case ReadOnly:
		return os.O_RDONLY
	case ReadWrite:
		return os.O_RDWR
	default:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
}

// File is an encrypted container over a base file. Plaintext offsets map
// one to one onto ciphertext offsets shifted by the 16-byte nonce header;
// each operation positions the AES-CTR keystream from the absolute offset,
// so no cipher state persists between operations.
//
// A File is not safe for concurrent use: the cursor is handle-local
// mutable state with no internal synchronization. Cross-process exclusion
// is provided by the advisory lock taken in Open.
type File struct {
	base   absfs.File
	lock   *flock.Flock // nil unless opened by path
	name   string
	mode   Mode
	key    []byte // retained copy, zeroed on Close
	block  cipher.Block
	nonce  uint128
	offset int64
	closed bool
}

// Open opens the encrypted container at path. The key must be 32 bytes.
// A whole-file advisory lock is acquired before the file is opened, shared
// for ReadOnly and exclusive for write-capable modes, blocking until
// granted and held until Close.
func Open(path string, key []byte, mode Mode) (*File, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	// Missing files fail before the lock is taken; flock would otherwise
	// create an empty one for read-only opens.
	if mode != Create {
		if _, err := os.Stat(path); err != nil {
			return nil, &IOError{Op: "open", Path: path, Err: err}
		}
	}

	lock, err := acquireLock(path, mode)
	if err != nil {
		return nil, err
	}

	base, err := os.OpenFile(path, mode.openFlag(), 0600)
	if err != nil {
		lock.Unlock()
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}

	f, err := newFile(base, lock, path, key, mode)
	if err != nil {
		base.Close()
		lock.Unlock()
		return nil, err
	}
	return f, nil
}

// OpenFile layers an encrypted container over an already open base file,
// for example one obtained from an absfs.FileSystem. No advisory lock is
// acquired; exclusion is the caller's concern. The returned File owns base
// and closes it on Close.
func OpenFile(base absfs.File, key []byte, mode Mode) (*File, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	return newFile(base, nil, base.Name(), key, mode)
}

func newFile(base absfs.File, lock *flock.Flock, name string, key []byte, mode Mode) (*File, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKey
	}

	f := &File{
		base:  base,
		lock:  lock,
		name:  name,
		mode:  mode,
		key:   append([]byte(nil), key...),
		block: block,
	}

	if _, err := base.Seek(0, io.SeekStart); err != nil {
		return nil, &IOError{Op: "seek", Path: name, Err: err}
	}

	if mode == Create {
		hdr, err := newHeader()
		if err != nil {
			return nil, err
		}
		if _, err := hdr.WriteTo(base); err != nil {
			return nil, &IOError{Op: "write header", Path: name, Err: err}
		}
		f.nonce = hdr.Nonce
	} else {
		hdr, err := readHeader(base)
		if err != nil {
			if err == ErrCorruptHeader {
				return nil, err
			}
			return nil, &IOError{Op: "read header", Path: name, Err: err}
		}
		f.nonce = hdr.Nonce
	}

	return f, nil
}

// Name returns the name the container was opened with.
func (f *File) Name() string {
	return f.name
}

// Mode returns the capability the handle was opened with.
func (f *File) Mode() Mode {
	return f.mode
}

// Tell returns the current cursor position in the plaintext.
func (f *File) Tell() int64 {
	return f.offset
}

// Size returns the current plaintext length, queried live from the base
// file.
func (f *File) Size() (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}
	return f.plaintextSize()
}

func (f *File) plaintextSize() (int64, error) {
	end, err := f.base.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, &IOError{Op: "seek", Path: f.name, Err: err}
	}
	if end < HeaderSize {
		return 0, ErrCorruptHeader
	}
	return end - HeaderSize, nil
}

func (f *File) writable() error {
	if f.closed {
		return ErrClosed
	}
	if !f.mode.writable() {
		return ErrReadOnly
	}
	return nil
}

// Seek sets the cursor for the next Read or Write. Seeking past the end of
// file is legal; the hole materializes as encrypted zeros on a later write.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.offset + offset
	case io.SeekEnd:
		size, err := f.plaintextSize()
		if err != nil {
			return 0, err
		}
		target = size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	if target < 0 {
		return 0, ErrInvalidOffset
	}

	f.offset = target
	return target, nil
}

// Read decrypts up to len(p) bytes at the cursor. Reading past the logical
// end of file is not an error: it yields a short count and then io.EOF.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := f.decryptAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

// ReadAt decrypts len(p) bytes starting at plaintext offset off without
// moving the cursor.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}

	n, err := f.decryptAt(p, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (f *File) decryptAt(p []byte, off int64) (int, error) {
	size, err := f.plaintextSize()
	if err != nil {
		return 0, err
	}
	if off >= size {
		return 0, io.EOF
	}
	if avail := size - off; int64(len(p)) > avail {
		p = p[:avail]
	}

	if _, err := f.base.Seek(HeaderSize+off, io.SeekStart); err != nil {
		return 0, &IOError{Op: "seek", Path: f.name, Err: err}
	}

	n, err := io.ReadFull(f.base, p)
	if n > 0 {
		stream := keystreamAt(f.block, f.nonce, off)
		stream.XORKeyStream(p[:n], p[:n])
	}
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		if n == 0 {
			return 0, io.EOF
		}
	default:
		return n, &IOError{Op: "read", Path: f.name, Err: err}
	}
	return n, nil
}

// Write encrypts p at the cursor. If the cursor is beyond the current end
// of file, the hole is first filled with encrypted zero padding so every
// byte position stays counter-consistent. Short writes to the underlying
// storage are reported, not swallowed.
func (f *File) Write(p []byte) (int, error) {
	if err := f.writable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := f.fillTo(f.offset); err != nil {
		return 0, err
	}

	n, err := f.encryptAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

// WriteAt encrypts p at plaintext offset off without moving the cursor.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if err := f.writable(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := f.fillTo(off); err != nil {
		return 0, err
	}
	return f.encryptAt(p, off)
}

// WriteString writes the contents of string s at the cursor.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// fillTo extends the container with encrypted zero padding so the
// plaintext reaches at least off bytes.
func (f *File) fillTo(off int64) error {
	size, err := f.plaintextSize()
	if err != nil {
		return err
	}
	if off <= size {
		return nil
	}
	return f.writeZeros(size, off-size)
}

func (f *File) encryptAt(p []byte, off int64) (int, error) {
	if _, err := f.base.Seek(HeaderSize+off, io.SeekStart); err != nil {
		return 0, &IOError{Op: "seek", Path: f.name, Err: err}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = append(buf.B[:0], p...)

	stream := keystreamAt(f.block, f.nonce, off)
	stream.XORKeyStream(buf.B, buf.B)

	n, err := f.base.Write(buf.B)
	if err != nil {
		return n, &IOError{Op: "write", Path: f.name, Err: err}
	}
	if n < len(p) {
		return n, &IOError{Op: "write", Path: f.name, Err: io.ErrShortWrite}
	}
	return n, nil
}

// Truncate changes the plaintext length. Growing pads with encrypted zeros
// exactly as a write past end of file would; shrinking truncates the base
// file, which needs no re-encryption since every byte's keystream position
// is fixed by its absolute offset. The cursor does not move.
func (f *File) Truncate(size int64) error {
	if err := f.writable(); err != nil {
		return err
	}
	if size < 0 {
		return ErrInvalidOffset
	}

	cur, err := f.plaintextSize()
	if err != nil {
		return err
	}
	if size > cur {
		return f.writeZeros(cur, size-cur)
	}
	if err := f.base.Truncate(HeaderSize + size); err != nil {
		return &IOError{Op: "truncate", Path: f.name, Err: err}
	}
	return nil
}

// Sync commits the current contents to stable storage.
func (f *File) Sync() error {
	if f.closed {
		return ErrClosed
	}
	if err := f.base.Sync(); err != nil {
		return &IOError{Op: "sync", Path: f.name, Err: err}
	}
	return nil
}

// Close releases the advisory lock, closes the base file and zeroes the
// retained key copy. Any operation on the handle afterwards, including a
// second Close, fails with ErrClosed.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true

	for i := range f.key {
		f.key[i] = 0
	}
	f.key = nil

	var err error
	if cerr := f.base.Close(); cerr != nil {
		err = &IOError{Op: "close", Path: f.name, Err: cerr}
	}
	if f.lock != nil {
		if uerr := f.lock.Unlock(); uerr != nil && err == nil {
			err = &IOError{Op: "unlock", Path: f.name, Err: uerr}
		}
	}
	return err
}
