// Package filestore keeps uploaded avatar images on local disk.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pocketbook/internal/uuid"
)

// ErrUnsupportedType is returned for files that are not accepted images.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrTooLarge is returned when an upload exceeds the size limit.
var ErrTooLarge = errors.New("file too large")

// MaxSize is the largest accepted upload in bytes.
const MaxSize = 5 << 20

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Store saves and removes uploaded files.
type Store interface {
	// Save writes r under a generated name keeping the extension of name,
	// and returns the stored path.
	Save(name string, r io.Reader) (string, error)
	// Delete removes a file previously returned by Save. Missing files are
	// ignored.
	Delete(path string) error
}

// Disk stores files in a single directory.
type Disk struct {
	dir string
}

// NewDisk creates a Disk rooted at dir.
func NewDisk(dir string) *Disk {
	return &Disk{dir: filepath.Clean(dir)}
}

// Save implements Store.
func (d *Disk) Save(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExt[ext] {
		return "", ErrUnsupportedType
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(d.dir, uuid.New()+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxSize+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n > MaxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Delete implements Store. Paths outside the store's directory are refused.
func (d *Disk) Delete(path string) error {
	if path == "" {
		return nil
	}
	clean := filepath.Clean(path)
	if filepath.Dir(clean) != d.dir {
		return fmt.Errorf("refusing to delete %q outside %q", path, d.dir)
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

var _ Store = (*Disk)(nil)
