// Package store implements the Local Library Store: the sole mutator of
// the on-disk dual-path album tree and the flat, content-addressed asset
// directory (§4.1). It owns all path arithmetic and enforces the
// invariants I1-I5.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ivoronin/icloudmirror/internal/album"
	"github.com/ivoronin/icloudmirror/internal/cache"
	"github.com/ivoronin/icloudmirror/internal/types"
)

// Layout constants (§3 "On-disk layout").
const (
	AssetDirName   = "_All-Photos"
	ArchiveDirName = "_Archive"
	StashDirName   = "_Stash" // under ArchiveDirName
)

// maxOrphanSuffix bounds the collision-avoidance loop in
// clean_archived_orphans (§9 Open Question resolution): after this many
// "-N" suffixes are all taken, the tree is treated as pathologically
// ambiguous rather than looping forever.
const maxOrphanSuffix = 10000

// Store is the filesystem-backed Library Store for one data directory.
// Its methods do not acquire Semaphore themselves; callers that write
// assets concurrently acquire it.
type Store struct {
	DataDir string
	Cache   *cache.Cache // nil disables verified-hash caching

	// Semaphore is acquired by the Sync Engine's asset-add phase around
	// each download and its WriteAsset call.
	Semaphore types.Semaphore
}

// New constructs a Store rooted at dataDir. cache may be nil to disable
// the verified-hash optimization.
func New(dataDir string, c *cache.Cache, concurrency int) *Store {
	return &Store{
		DataDir:   dataDir,
		Cache:     c,
		Semaphore: types.NewSemaphore(concurrency),
	}
}

// AssetDir returns the absolute path of the asset directory.
func (s *Store) AssetDir() string {
	return filepath.Join(s.DataDir, AssetDirName)
}

// ArchiveDir returns the absolute path of the archive directory.
func (s *Store) ArchiveDir() string {
	return filepath.Join(s.DataDir, ArchiveDirName)
}

// StashDir returns the absolute path of the stash directory.
func (s *Store) StashDir() string {
	return filepath.Join(s.ArchiveDir(), StashDirName)
}

// EnsureLayout creates the fixed top-level directories if absent. It is
// called at the start of every run by the caller that owns the run
// lifecycle (enginesync), kept separate from New so tests can point a
// Store at an already-populated directory without re-creating anything.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.AssetDir(), s.ArchiveDir(), s.StashDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure layout %s: %w", dir, err)
		}
	}
	return nil
}

// rootAlbum is the synthetic root node (§3: "root is synthetic, never
// written, never listed"). find_album_paths' parent search does not
// consult it: an empty ParentUUID resolves directly to the data directory.
var rootAlbum = album.Album{Kind: album.KindRoot}
