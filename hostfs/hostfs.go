// Package hostfs is the host-filesystem collaborator: an existence check
// and a blocking read with byte-order-mark stripping, kept separate from
// the runtime so tests can substitute an in-memory FS.
package hostfs

import (
	"bytes"
	"errors"
	"os"
)

// ErrNotExist is returned by Read when path does not exist, so callers can
// distinguish a missing file from any other read failure without depending
// on os.IsNotExist directly.
var ErrNotExist = errors.New("hostfs: file does not exist")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FS is the host filesystem collaborator the runtime reads module source
// and ".json" data files through.
type FS struct{}

func New() *FS { return &FS{} }

// Exists reports whether path names a regular file or directory.
func (f *FS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Read performs a blocking read of path, stripping a leading UTF-8
// byte-order mark if present.
func (f *FS) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotExist
		}
		return "", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	return string(data), nil
}
