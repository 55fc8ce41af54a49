package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCacheDisabled(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	hash := []byte("12345678901234567890123456789012") // 32 bytes
	mtime := time.Now()

	if err := c.Store("uuid-1", 100, mtime, hash); err != nil {
		t.Fatalf("Store() on disabled cache returned error: %v", err)
	}

	result, err := c.Lookup("uuid-1", 100, mtime)
	if err != nil {
		t.Fatalf("Lookup() on disabled cache returned error: %v", err)
	}
	if result != nil {
		t.Errorf("Lookup() on disabled cache returned %v, want nil", result)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "cache.db")

	c1, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	mtime := time.Unix(1609459200, 0)
	hash := []byte("abcdefghijklmnopqrstuvwxyz012345") // 32 bytes

	if err := c1.Store("uuid-a", 1024, mtime, hash); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	if err := c1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Second run: should read back what was stored.
	c2, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() (2nd) failed: %v", err)
	}
	defer func() { _ = c2.Close() }()

	got, err := c2.Lookup("uuid-a", 1024, mtime)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if string(got) != string(hash) {
		t.Errorf("Lookup() = %x, want %x", got, hash)
	}
}

func TestCacheMissOnSizeChange(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "cache.db")

	mtime := time.Unix(1609459200, 0)
	hash := []byte("abcdefghijklmnopqrstuvwxyz012345")

	c1, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c1.Store("uuid-b", 1024, mtime, hash); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	c2, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() (2nd) failed: %v", err)
	}
	defer func() { _ = c2.Close() }()

	got, err := c2.Lookup("uuid-b", 2048, mtime) // size changed
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if got != nil {
		t.Errorf("Lookup() with changed size = %x, want nil (cache miss)", got)
	}
}

func TestCacheMissOnMtimeChange(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "cache.db")
	hash := []byte("abcdefghijklmnopqrstuvwxyz012345")

	c1, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c1.Store("uuid-c", 1024, time.Unix(1000, 0), hash); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if err := c1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	c2, err := Open(cachePath)
	if err != nil {
		t.Fatalf("Open() (2nd) failed: %v", err)
	}
	defer func() { _ = c2.Close() }()

	got, err := c2.Lookup("uuid-c", 1024, time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if got != nil {
		t.Errorf("Lookup() with changed mtime = %x, want nil (cache miss)", got)
	}
}

func TestCacheRejectsWrongHashSize(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Store("uuid-d", 1, time.Now(), []byte("too-short")); err != nil {
		t.Fatalf("Store() with wrong size hash returned error: %v", err)
	}
	// Store silently ignores malformed hashes rather than corrupting the cache.
	got, err := c.Lookup("uuid-d", 1, time.Now())
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if got != nil {
		t.Errorf("Lookup() after rejected Store() = %x, want nil", got)
	}
}
