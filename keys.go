package cryptfile

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltFileName = "salt"
	saltSize     = 32

	// kdfIterations is the fixed PBKDF2 iteration count for stretching the
	// store secret.
	kdfIterations = 100000

	// fileKeyMaterial is the HKDF output per file: a 32-byte content key
	// followed by 64 bytes of HMAC key for the storage name.
	fileKeyMaterial = 3 * 32
)

// MasterKey holds the HKDF pseudorandom key a store derives per-file keys
// and storage names from. It is derived once per store from an externally
// supplied secret and the store's persisted salts.
type MasterKey struct {
	prk []byte
}

// NewMasterKey derives the master key for the store rooted at dir. The
// secret is stretched with PBKDF2-SHA256 using the store's KDF salt, then
// fed through HKDF-SHA256 extract with the second salt. The salts live in
// dir/salt and are generated on first use.
func NewMasterKey(fs absfs.FileSystem, dir string, secret []byte) (*MasterKey, error) {
	kdfSalt, hkdfSalt, err := loadOrCreateSalt(fs, dir)
	if err != nil {
		return nil, err
	}
	stretched := pbkdf2.Key(secret, kdfSalt, kdfIterations, KeySize, sha256.New)
	return &MasterKey{prk: hkdf.Extract(sha256.New, stretched, hkdfSalt)}, nil
}

// FileCredentials derives the 32-byte content key and the hashed storage
// name for a logical file name. Derivation is deterministic, so the same
// name always maps to the same container and key, and names never appear
// in the clear in the base filesystem.
func (m *MasterKey) FileCredentials(name string) (key []byte, storageName string, err error) {
	data := make([]byte, fileKeyMaterial)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, m.prk, []byte(name)), data); err != nil {
		return nil, "", fmt.Errorf("failed to derive file key: %w", err)
	}

	mac := hmac.New(sha512.New, data[KeySize:])
	mac.Write([]byte(name))
	return data[:KeySize], hex.EncodeToString(mac.Sum(nil)), nil
}

// loadOrCreateSalt reads the two 32-byte salts from dir/salt. A missing or
// short salt file is replaced with fresh random salts, written through a
// uniquely named temp file and renamed into place so a concurrent store
// never observes a partial salt file.
func loadOrCreateSalt(fs absfs.FileSystem, dir string) (kdfSalt, hkdfSalt []byte, err error) {
	name := path.Join(dir, saltFileName)

	if f, err := fs.Open(name); err == nil {
		b := make([]byte, 2*saltSize)
		_, rerr := io.ReadFull(f, b)
		f.Close()
		if rerr == nil {
			return b[:saltSize], b[saltSize:], nil
		}
	}

	b := make([]byte, 2*saltSize)
	if _, err := rand.Read(b); err != nil {
		return nil, nil, &IOError{Op: "generate salt", Path: name, Err: err}
	}

	tmp := name + "." + uuid.NewString() + ".tmp"
	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, nil, &IOError{Op: "create salt", Path: tmp, Err: err}
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		fs.Remove(tmp)
		return nil, nil, &IOError{Op: "write salt", Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		fs.Remove(tmp)
		return nil, nil, &IOError{Op: "close salt", Path: tmp, Err: err}
	}
	// A malformed salt file is replaced outright.
	if _, err := fs.Stat(name); err == nil {
		fs.Remove(name)
	}
	if err := fs.Rename(tmp, name); err != nil {
		fs.Remove(tmp)
		return nil, nil, &IOError{Op: "rename salt", Path: name, Err: err}
	}
	return b[:saltSize], b[saltSize:], nil
}
