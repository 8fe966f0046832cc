package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ImageStore keeps food photos on disk keyed by the product's time:
// <root>/<time>.jpg, with temp_<time>.jpg for photos not yet matched to a
// product.
type ImageStore struct {
	root      string
	writeLock sync.Mutex
}

// NewImageStore creates a store rooted at root.
func NewImageStore(root string) *ImageStore {
	return &ImageStore{root: root}
}

// Path returns the file path for the image keyed by t.
func (s *ImageStore) Path(t int64) string {
	return filepath.Join(s.root, strconv.FormatInt(t, 10)+".jpg")
}

func (s *ImageStore) tempPath(t int64) string {
	return filepath.Join(s.root, "temp_"+strconv.FormatInt(t, 10)+".jpg")
}

func (s *ImageStore) write(path string, data []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Save stores data as the image for t.
func (s *ImageStore) Save(t int64, data []byte) error {
	return s.write(s.Path(t), data)
}

// SaveTemporary stores a photo that has no product yet.
func (s *ImageStore) SaveTemporary(t int64, data []byte) error {
	return s.write(s.tempPath(t), data)
}

// MoveTemporary re-keys the temporary image from tempTime to finalTime.
func (s *ImageStore) MoveTemporary(tempTime, finalTime int64) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if err := os.Rename(s.tempPath(tempTime), s.Path(finalTime)); err != nil {
		return fmt.Errorf("move temp image %d -> %d: %w", tempTime, finalTime, err)
	}
	return nil
}

// Load returns the image for t.
func (s *ImageStore) Load(t int64) ([]byte, error) {
	return os.ReadFile(s.Path(t))
}

// Exists reports whether an image for t is stored.
func (s *ImageStore) Exists(t int64) bool {
	_, err := os.Stat(s.Path(t))
	return err == nil
}

// Delete removes the image for t. A missing image is not an error.
func (s *ImageStore) Delete(t int64) error {
	err := os.Remove(s.Path(t))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every stored image, temporary ones included.
func (s *ImageStore) Clear() error {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
