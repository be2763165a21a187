package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func TestCacheStoreRoundTrip(t *testing.T) {
	c := newTestCache(t)

	data := []byte{0x49, 0x44, 0x33, 0x04, 0x00}
	filename, err := c.Store("tts_", "mp3", data)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !strings.HasPrefix(filename, "tts_") || !strings.HasSuffix(filename, ".mp3") {
		t.Fatalf("unexpected filename: %q", filename)
	}

	path, mediaType, err := c.Resolve(filename)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if mediaType != "audio/mpeg" {
		t.Fatalf("unexpected media type: %q", mediaType)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("artifact content mismatch")
	}
}

func TestCacheIngestMovesFile(t *testing.T) {
	c := newTestCache(t)

	src := filepath.Join(t.TempDir(), "upload.webm")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	filename, err := c.Ingest(src, ".webm")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be moved, stat err: %v", err)
	}
	if _, _, err := c.Resolve(filename); err != nil {
		t.Fatalf("Resolve after ingest failed: %v", err)
	}
}

func TestCacheResolveNotFound(t *testing.T) {
	c := newTestCache(t)

	if _, _, err := c.Resolve("nope.mp3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCacheResolveRejectsTraversal(t *testing.T) {
	c := newTestCache(t)

	for _, name := range []string{"../escape.mp3", "a/b.mp3", ""} {
		if _, _, err := c.Resolve(name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q, got %v", name, err)
		}
	}
}
