package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ivoronin/icloudmirror/internal/album"
	"github.com/ivoronin/icloudmirror/internal/asset"
)

// WriteAlbum creates the dual-path pair for a and, for kind = album,
// links all asset members (§4.1 write_album). assets resolves member
// asset UUIDs against locally-known assets for LinkAlbumAssets; warn
// reports non-fatal per-link failures. Fails with ErrAlreadyExists if
// either path already exists.
func (s *Store) WriteAlbum(a album.Album, assets map[string]asset.Asset, warn func(string, error)) error {
	namePath, uuidPath, err := s.FindAlbumPaths(a)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(uuidPath); err == nil {
		return fmt.Errorf("write album %s: %w", a.UUID, ErrAlreadyExists)
	}
	if _, err := os.Lstat(namePath); err == nil {
		return fmt.Errorf("write album %s: %w", a.UUID, ErrAlreadyExists)
	}

	if err := os.MkdirAll(uuidPath, 0o755); err != nil {
		return fmt.Errorf("write album %s: %w", a.UUID, err)
	}
	if err := createSymlinkAtomic(uuidPath, namePath); err != nil {
		return fmt.Errorf("write album %s: %w", a.UUID, err)
	}

	if a.Kind == album.KindAlbum {
		s.LinkAlbumAssets(a, uuidPath, assets, warn)
	}
	return nil
}

// LinkAlbumAssets creates the asset symlinks for a inside uuidPath
// (§4.1 link_album_assets). assets resolves each member asset UUID to
// its on-disk extension; a member whose UUID is missing from assets, or
// whose symlink otherwise fails to create, is reported through warn and
// skipped — this tolerates pre-existing links on re-run and does not
// abort the whole album write over one bad entry.
func (s *Store) LinkAlbumAssets(a album.Album, uuidPath string, assets map[string]asset.Asset, warn func(string, error)) {
	for assetUUID, linkedName := range a.Assets {
		linkPath := filepath.Join(uuidPath, linkedName)
		target, ok := assets[assetUUID]
		if !ok {
			if warn != nil {
				warn(linkPath, fmt.Errorf("asset %s not found locally", assetUUID))
			}
			continue
		}
		if err := s.LinkAsset(uuidPath, linkedName, target); err != nil {
			if warn != nil {
				warn(linkPath, err)
			}
		}
	}
}

// LinkAsset creates a single asset symlink inside uuidPath pointing at
// a's file in the asset directory, named linkedName, with the symlink's
// own mtime set to the asset's mtime (§3 "Asset linkage in albums").
func (s *Store) LinkAsset(uuidPath, linkedName string, a asset.Asset) error {
	linkPath := filepath.Join(uuidPath, linkedName)
	if err := createSymlinkAtomic(s.AssetPath(a), linkPath); err != nil {
		return fmt.Errorf("link asset %s: %w", a.UUID, err)
	}
	mtime := a.ModifiedTime
	if !mtime.IsZero() {
		if err := os.Lchtimes(linkPath, mtime, mtime); err != nil {
			return fmt.Errorf("link asset %s: set mtime: %w", a.UUID, err)
		}
	}
	return nil
}

// DeleteAlbum removes the dual-path pair for a (§4.1 delete_album).
// Fails with ErrNotEmpty if the UUID directory contains anything other
// than symlinks or safe-named files — the caller should archive instead
// of delete in that case. Fails if either path is missing.
func (s *Store) DeleteAlbum(a album.Album) error {
	namePath, uuidPath, err := s.FindAlbumPaths(a)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(uuidPath)
	if err != nil {
		return fmt.Errorf("delete album %s: %w", a.UUID, err)
	}
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if album.IsSafeFile(entry.Name()) {
			continue
		}
		return fmt.Errorf("delete album %s: %w", a.UUID, ErrNotEmpty)
	}

	if err := os.RemoveAll(uuidPath); err != nil {
		return fmt.Errorf("delete album %s: %w", a.UUID, err)
	}
	if err := os.Remove(namePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete album %s: %w", a.UUID, err)
	}
	return nil
}

// RenameAlbum handles the same-UUID case detected by the Differ
// (§9 AlbumRename): only the name symlink needs to change, so this swaps
// it without touching the UUID directory or re-downloading any asset.
func (s *Store) RenameAlbum(oldAlbum, newAlbum album.Album) error {
	if oldAlbum.UUID != newAlbum.UUID {
		return fmt.Errorf("rename album: uuid mismatch %s != %s", oldAlbum.UUID, newAlbum.UUID)
	}

	oldName, uuidPath, err := s.FindAlbumPaths(oldAlbum)
	if err != nil {
		return err
	}
	newName, _, err := s.FindAlbumPaths(newAlbum)
	if err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	if err := os.Remove(oldName); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename album %s: unlink old name: %w", oldAlbum.UUID, err)
	}
	if err := createSymlinkAtomic(uuidPath, newName); err != nil {
		return fmt.Errorf("rename album %s: relink new name: %w", oldAlbum.UUID, err)
	}
	return nil
}

// MoveAlbum relocates the dual-path pair for oldAlbum to the location
// computed for newAlbum's parent (§9 AlbumMove, spec.md:39 "remote
// re-parenting moves both sides atomically"). The UUID directory and
// the name symlink both move, via the same atomic move_path_tuple
// primitive used to stash and retrieve archived albums. Any
// simultaneous display-name change is picked up for free, since the
// destination name path is computed from newAlbum.
func (s *Store) MoveAlbum(oldAlbum, newAlbum album.Album) error {
	if oldAlbum.UUID != newAlbum.UUID {
		return fmt.Errorf("move album: uuid mismatch %s != %s", oldAlbum.UUID, newAlbum.UUID)
	}

	srcName, srcUUID, err := s.FindAlbumPaths(oldAlbum)
	if err != nil {
		return err
	}
	dstName, dstUUID, err := s.FindAlbumPaths(newAlbum)
	if err != nil {
		return err
	}
	if srcUUID == dstUUID {
		return nil
	}

	if err := s.MovePathTuple(srcName, srcUUID, dstName, dstUUID); err != nil {
		return fmt.Errorf("move album %s: %w", oldAlbum.UUID, err)
	}
	return nil
}
