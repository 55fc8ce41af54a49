package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ivoronin/icloudmirror/internal/album"
)

// StashArchivedAlbum moves the dual-path pair for an archived album into
// the stash directory, used when its remote counterpart disappears
// (§4.1 stash_archived_album, state transition archived_present -> stashed).
func (s *Store) StashArchivedAlbum(a album.Album) error {
	srcName, srcUUID, err := s.FindAlbumPaths(a)
	if err != nil {
		return err
	}
	dstUUID := filepath.Join(s.StashDir(), album.UUIDDirName(a.UUID))
	dstName := filepath.Join(s.StashDir(), album.SanitizeDisplayName(a.DisplayName))

	if err := s.MovePathTuple(srcName, srcUUID, dstName, dstUUID); err != nil {
		return fmt.Errorf("stash archived album %s: %w", a.UUID, err)
	}
	return nil
}

// RetrieveStashedAlbum moves a previously stashed album back to its
// computed parent path, used when a matching remote album reappears in
// the same run (§4.1 retrieve_stashed_album, stashed -> archived_present).
func (s *Store) RetrieveStashedAlbum(a album.Album) error {
	srcUUID := filepath.Join(s.StashDir(), album.UUIDDirName(a.UUID))
	srcName := filepath.Join(s.StashDir(), album.SanitizeDisplayName(a.DisplayName))

	dstName, dstUUID, err := s.FindAlbumPaths(a)
	if err != nil {
		return err
	}

	if err := s.MovePathTuple(srcName, srcUUID, dstName, dstUUID); err != nil {
		return fmt.Errorf("retrieve stashed album %s: %w", a.UUID, err)
	}
	return nil
}

// CleanArchivedOrphans promotes every album remaining under the stash at
// end-of-run into the archive directory proper, under a collision-
// avoiding name (§4.1 clean_archived_orphans, stashed -> orphan_archived).
// This flattens the stash, whose purpose is purely transient, into
// permanent archived entries.
func (s *Store) CleanArchivedOrphans() error {
	entries, err := os.ReadDir(s.StashDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clean archived orphans: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		uuid, ok := album.UUIDFromDirName(entry.Name())
		if !ok {
			continue
		}
		if err := s.promoteOrphan(uuid); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) promoteOrphan(uuid string) error {
	uuidPath := filepath.Join(s.StashDir(), album.UUIDDirName(uuid))
	namePath, err := s.findNameSymlink(uuidPath)
	if err != nil {
		return fmt.Errorf("clean archived orphans %s: %w", uuid, err)
	}
	srcName := filepath.Join(s.StashDir(), namePath)

	base := namePath
	for attempt := 0; attempt <= maxOrphanSuffix; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		dstName := filepath.Join(s.ArchiveDir(), candidate)
		dstUUID := filepath.Join(s.ArchiveDir(), album.UUIDDirName(uuid))

		if _, err := os.Lstat(dstName); err == nil {
			continue
		}

		if err := s.MovePathTuple(srcName, uuidPath, dstName, dstUUID); err != nil {
			if errors.Is(err, ErrMoveDestinationExists) {
				continue
			}
			return fmt.Errorf("clean archived orphans %s: %w", uuid, err)
		}
		return nil
	}
	return fmt.Errorf("clean archived orphans %s: %w", uuid, ErrAmbiguousTree)
}
