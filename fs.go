package cryptfile

import (
	"errors"
	"path"

	"github.com/absfs/absfs"
)

// FS is an encrypted store over an absfs.FileSystem. Logical file names
// are mapped to hashed storage names, and each container is encrypted
// with its own key derived from the store master key, so the base
// filesystem sees neither names nor contents.
//
// FS does not take advisory locks: absfs backends are frequently
// in-memory or otherwise not lockable. Callers needing cross-process
// exclusion should open containers by path with Open instead.
type FS struct {
	base   absfs.FileSystem
	dir    string
	master *MasterKey
}

// NewFS opens or initializes the encrypted store rooted at dir inside
// base, deriving its master key from secret.
func NewFS(base absfs.FileSystem, dir string, secret []byte) (*FS, error) {
	if base == nil {
		return nil, errors.New("base filesystem cannot be nil")
	}

	if err := base.MkdirAll(dir, 0700); err != nil {
		return nil, &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	master, err := NewMasterKey(base, dir, secret)
	if err != nil {
		return nil, err
	}

	return &FS{base: base, dir: dir, master: master}, nil
}

// OpenFile opens the container for the logical name with the given mode.
func (s *FS) OpenFile(name string, mode Mode) (*File, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	key, storage, err := s.master.FileCredentials(name)
	if err != nil {
		return nil, err
	}

	base, err := s.base.OpenFile(path.Join(s.dir, storage), mode.openFlag(), 0600)
	if err != nil {
		return nil, &IOError{Op: "open", Path: name, Err: err}
	}

	f, err := newFile(base, nil, name, key, mode)
	if err != nil {
		base.Close()
		return nil, err
	}
	return f, nil
}

// Open opens an existing logical file read-only.
func (s *FS) Open(name string) (*File, error) {
	return s.OpenFile(name, ReadOnly)
}

// Create creates or truncates the container for the logical name.
func (s *FS) Create(name string) (*File, error) {
	return s.OpenFile(name, Create)
}

// Remove deletes the container for the logical name.
func (s *FS) Remove(name string) error {
	_, storage, err := s.master.FileCredentials(name)
	if err != nil {
		return err
	}
	if err := s.base.Remove(path.Join(s.dir, storage)); err != nil {
		return &IOError{Op: "remove", Path: name, Err: err}
	}
	return nil
}
