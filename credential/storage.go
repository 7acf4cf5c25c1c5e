package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrStorage wraps durable storage failures surfaced by [Store.Set] and
// [Store.Clear].
var ErrStorage = errors.New("credential storage failure")

// Storage is the durable backing for a [Store]. Store must not return until
// the data is durably written (or durably queued); Load returns nil data
// when nothing is stored.
type Storage interface {
	Load() ([]byte, error)
	Store(data []byte) error
	Wipe() error
}

// FileStorage persists the encoded pair in a single file, written via a
// temp-file rename so readers never observe a partial blob.
type FileStorage struct {
	path string
}

// NewFileStorage creates a [FileStorage] rooted at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the stored blob. A missing file is not an error.
func (f *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return data, nil
}

// Store atomically replaces the stored blob and syncs it to disk before
// returning.
func (f *FileStorage) Store(data []byte) error {
	dir := filepath.Dir(f.path)

	tmp, err := os.CreateTemp(dir, ".pair-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return nil
}

// Wipe removes the stored blob. Removing an absent file succeeds.
func (f *FileStorage) Wipe() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
