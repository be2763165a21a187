// Package cache provides the filesystem cache for generated and ingested
// audio artifacts.
package cache

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Resolve for unknown or invalid filenames.
var ErrNotFound = errors.New("cache: artifact not found")

// Cache is a write-once content cache keyed by generated unique filenames.
type Cache struct {
	dir string
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Store writes data under a freshly generated unique filename and returns
// that filename.
func (c *Cache) Store(prefix, ext string, data []byte) (string, error) {
	filename := prefix + uuid.New().String() + normalizeExt(ext)
	if err := os.WriteFile(filepath.Join(c.dir, filename), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return filename, nil
}

// Ingest moves an existing file into the cache under a fresh name, falling
// back to a copy when a rename is not possible (e.g. across filesystems).
func (c *Cache) Ingest(srcPath, ext string) (string, error) {
	filename := uuid.New().String() + normalizeExt(ext)
	dest := filepath.Join(c.dir, filename)
	if err := os.Rename(srcPath, dest); err != nil {
		if copyErr := copyFile(srcPath, dest); copyErr != nil {
			return "", fmt.Errorf("failed to ingest artifact: %w", copyErr)
		}
	}
	return filename, nil
}

// Resolve maps a filename to its on-disk path and media type. Filenames that
// escape the cache directory resolve to ErrNotFound.
func (c *Cache) Resolve(filename string) (string, string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", "", ErrNotFound
	}
	path := filepath.Join(c.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", "", ErrNotFound
	}
	mediaType := mime.TypeByExtension(filepath.Ext(filename))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return path, mediaType, nil
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ".wav"
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
