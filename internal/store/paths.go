package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ivoronin/icloudmirror/internal/album"
)

// orphanedTmpMaxAge is the minimum age for a leftover *.icloudmirror.tmp
// symlink to be considered orphaned rather than from an in-flight
// operation.
const orphanedTmpMaxAge = 1 * time.Minute

// FindAlbumPaths resolves the parent by searching from the data-directory
// root for a hidden directory named ".<parent_uuid>" and returns the
// unjoined (name_path, uuid_path) pair rooted there (§4.1
// find_album_paths). Fails with ErrParentNotFound if the parent cannot be
// located, and ErrAmbiguousTree if more than one match exists (I3
// violation).
func (s *Store) FindAlbumPaths(a album.Album) (namePath, uuidPath string, err error) {
	parentDir, err := s.findParentDir(a.ParentUUID)
	if err != nil {
		return "", "", err
	}
	uuidPath = filepath.Join(parentDir, album.UUIDDirName(a.UUID))
	namePath = filepath.Join(parentDir, album.SanitizeDisplayName(a.DisplayName))
	return namePath, uuidPath, nil
}

// findParentDir locates the directory that should contain a child album
// with the given parent UUID. An empty parentUUID means the data
// directory root (a top-level album).
func (s *Store) findParentDir(parentUUID string) (string, error) {
	if parentUUID == "" {
		return s.DataDir, nil
	}

	matches, err := s.searchUUIDDir(s.DataDir, parentUUID)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("find parent %s: %w", parentUUID, ErrParentNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("find parent %s: %w", parentUUID, ErrAmbiguousTree)
	}
}

// searchUUIDDir recursively searches dir for directories named
// ".<target>", descending only into folder-kind UUID directories (album
// directories hold only symlinks, archived directories are opaque, so
// neither can contain a nested album).
func (s *Store) searchUUIDDir(dir, target string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("search tree: read %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		uuid, ok := album.UUIDFromDirName(entry.Name())
		if !ok {
			continue
		}
		uuidPath := filepath.Join(dir, entry.Name())
		if uuid == target {
			matches = append(matches, uuidPath)
		}

		kind, _, err := s.readAlbumKind(uuidPath, nil)
		if err != nil {
			continue
		}
		if kind == album.KindFolder {
			sub, err := s.searchUUIDDir(uuidPath, target)
			if err != nil {
				return nil, err
			}
			matches = append(matches, sub...)
		}
	}
	return matches, nil
}

// createSymlinkAtomic creates a relative symlink at linkPath pointing at
// targetPath, via a temp-name-then-rename so a concurrent reader never
// observes a partially-created link.
func createSymlinkAtomic(targetPath, linkPath string) error {
	if _, err := os.Lstat(targetPath); err != nil {
		return fmt.Errorf("source missing before symlink creation: %w", err)
	}

	rel, err := filepath.Rel(filepath.Dir(linkPath), targetPath)
	if err != nil {
		rel = targetPath
	}

	tmp := linkPath + ".icloudmirror.tmp"
	err = os.Symlink(rel, tmp)
	if errors.Is(err, os.ErrExist) || errors.Is(err, syscall.EEXIST) {
		if cleanupErr := tryCleanupOrphanedTmp(tmp); cleanupErr != nil {
			return fmt.Errorf("tmp symlink exists and cannot be cleaned: %w", cleanupErr)
		}
		err = os.Symlink(rel, tmp)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, linkPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// tryCleanupOrphanedTmp removes a leftover temp symlink if it is old
// enough to be safely assumed abandoned by a prior crashed run.
func tryCleanupOrphanedTmp(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("lstat: %w", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("not a symlink, refusing to remove: %s", path)
	}
	cutoff := time.Now().Add(-orphanedTmpMaxAge)
	if info.ModTime().After(cutoff) {
		return fmt.Errorf("tmp file too recent (mtime %v, cutoff %v)", info.ModTime(), cutoff)
	}
	return os.Remove(path)
}

// MovePathTuple moves the (name, uuid) path pair from src to dst
// (§4.1 move_path_tuple). The UUID directory is renamed first, then the
// source name symlink is unlinked, then a fresh relative name symlink is
// created at the destination — the link is recreated rather than moved
// because its relative target basename changes with the parent.
func (s *Store) MovePathTuple(srcName, srcUUID, dstName, dstUUID string) error {
	if _, err := os.Lstat(srcUUID); err != nil {
		return fmt.Errorf("move path tuple: %w", ErrMoveSourceMissing)
	}
	if _, err := os.Lstat(srcName); err != nil {
		return fmt.Errorf("move path tuple: %w", ErrMoveSourceMissing)
	}
	if _, err := os.Lstat(dstUUID); err == nil {
		return fmt.Errorf("move path tuple: %w", ErrMoveDestinationExists)
	}
	if _, err := os.Lstat(dstName); err == nil {
		return fmt.Errorf("move path tuple: %w", ErrMoveDestinationExists)
	}

	if err := os.MkdirAll(filepath.Dir(dstUUID), 0o755); err != nil {
		return fmt.Errorf("move path tuple: %w", err)
	}
	if err := os.Rename(srcUUID, dstUUID); err != nil {
		return fmt.Errorf("move path tuple: rename uuid dir: %w", err)
	}
	if err := os.Remove(srcName); err != nil {
		return fmt.Errorf("move path tuple: unlink source name: %w", err)
	}
	if err := createSymlinkAtomic(dstUUID, dstName); err != nil {
		return fmt.Errorf("move path tuple: relink name: %w", err)
	}
	return nil
}
