package cryptfile

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// fillChunkSize is the buffer size used for zero padding and streaming
// writes.
const fillChunkSize = 64 * 1024

// WriteFrom encrypts data streamed from r at the cursor, chunk by chunk,
// until r is exhausted. A single keystream is kept across chunks, so the
// result is byte-identical to buffering r and issuing one Write. Returns
// the number of plaintext bytes consumed and written.
func (f *File) WriteFrom(r io.Reader) (int64, error) {
	if err := f.writable(); err != nil {
		return 0, err
	}

	if err := f.fillTo(f.offset); err != nil {
		return 0, err
	}

	stream := keystreamAt(f.block, f.nonce, f.offset)
	if _, err := f.base.Seek(HeaderSize+f.offset, io.SeekStart); err != nil {
		return 0, &IOError{Op: "seek", Path: f.name, Err: err}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if cap(buf.B) < fillChunkSize {
		buf.B = make([]byte, fillChunkSize)
	}
	chunk := buf.B[:fillChunkSize]

	var total int64
	for {
		n, rerr := r.Read(chunk)
		if n > 0 {
			stream.XORKeyStream(chunk[:n], chunk[:n])
			wn, werr := f.base.Write(chunk[:n])
			total += int64(wn)
			f.offset += int64(wn)
			if werr != nil {
				return total, &IOError{Op: "write", Path: f.name, Err: werr}
			}
			if wn < n {
				return total, &IOError{Op: "write", Path: f.name, Err: io.ErrShortWrite}
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// writeZeros appends count bytes of encrypted zero padding starting at
// plaintext offset off. The padding is zero plaintext XORed with the
// keystream, not literal zero bytes, so later writes at any offset stay
// counter-consistent.
func (f *File) writeZeros(off, count int64) error {
	stream := keystreamAt(f.block, f.nonce, off)
	if _, err := f.base.Seek(HeaderSize+off, io.SeekStart); err != nil {
		return &IOError{Op: "seek", Path: f.name, Err: err}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if cap(buf.B) < fillChunkSize {
		buf.B = make([]byte, fillChunkSize)
	}
	chunk := buf.B[:fillChunkSize]

	for count > 0 {
		n := int64(len(chunk))
		if count < n {
			n = count
		}
		clear(chunk[:n])
		stream.XORKeyStream(chunk[:n], chunk[:n])

		wn, err := f.base.Write(chunk[:n])
		if err != nil {
			return &IOError{Op: "write", Path: f.name, Err: err}
		}
		if int64(wn) < n {
			return &IOError{Op: "write", Path: f.name, Err: io.ErrShortWrite}
		}
		count -= n
	}
	return nil
}
