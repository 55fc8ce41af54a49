package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ivoronin/icloudmirror/internal/album"
)

// LoadAlbums performs a recursive walk from the data directory following
// the dual-path scheme, returning every non-root album found (§4.1
// load_albums). The synthetic root and the stash directory are never
// emitted.
func (s *Store) LoadAlbums(warn func(path string, err error)) (map[string]album.Album, error) {
	out := make(map[string]album.Album)
	if err := s.walkAlbums(s.DataDir, "", out, warn); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadStashedAlbums walks the stash directory and returns its current
// contents as a flat map keyed by UUID, the shape differ.Diff needs to
// detect a stashed -> archived_present retrieval (scenario 6). The stash
// directory is always flat (§4.1 stash_archived_album never nests), so
// every stashed album carries an empty ParentUUID here.
func (s *Store) LoadStashedAlbums(warn func(path string, err error)) (map[string]album.Album, error) {
	out := make(map[string]album.Album)
	if err := s.walkAlbums(s.StashDir(), "", out, warn); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) walkAlbums(dir, parentUUID string, out map[string]album.Album, warn func(string, error)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load albums: read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		uuid, ok := album.UUIDFromDirName(name)
		if !ok {
			continue
		}
		if dir == s.DataDir && name == filepath.Base(s.StashDir()) {
			continue
		}
		uuidPath := filepath.Join(dir, name)

		kind, displayName, err := s.readAlbumKind(uuidPath, warn)
		if err != nil {
			if warn != nil {
				warn(uuidPath, err)
			}
			continue
		}

		a := album.Album{
			UUID:        uuid,
			Kind:        kind,
			DisplayName: displayName,
			ParentUUID:  parentUUID,
			Assets:      map[string]string{},
		}

		if kind == album.KindAlbum {
			a.Assets = s.readAlbumAssets(uuidPath, warn)
		}

		out[uuid] = a

		if kind == album.KindFolder {
			if err := s.walkAlbums(uuidPath, uuid, out, warn); err != nil {
				return err
			}
		}
		// Recursion stops at archived (§4.1: "Recursion stops at archived").
	}
	return nil
}

// readAlbumKind classifies the UUID directory at uuidPath (§4.1
// read_album_kind) and recovers the display name from the sibling name
// symlink pointing at it.
func (s *Store) readAlbumKind(uuidPath string, warn func(string, error)) (album.Kind, string, error) {
	entries, err := os.ReadDir(uuidPath)
	if err != nil {
		return 0, "", fmt.Errorf("read album kind: %w", err)
	}

	hasSubdir := false
	hasRealFile := false
	for _, entry := range entries {
		switch {
		case entry.Type()&os.ModeSymlink != 0:
			// symlinks never count toward either signal
		case entry.IsDir():
			hasSubdir = true
		case album.IsSafeFile(entry.Name()):
			// ignored for classification
		default:
			hasRealFile = true
		}
	}

	displayName, err := s.findNameSymlink(uuidPath)
	if err != nil && warn != nil {
		warn(uuidPath, err)
	}

	if hasSubdir {
		if hasRealFile && warn != nil {
			warn(uuidPath, fmt.Errorf("folder contains stray real files alongside subdirectories"))
		}
		return album.KindFolder, displayName, nil
	}
	if hasRealFile {
		return album.KindArchived, displayName, nil
	}
	return album.KindAlbum, displayName, nil
}

// findNameSymlink locates the sibling name symlink pointing at uuidPath
// and returns its basename as the album's display name.
func (s *Store) findNameSymlink(uuidPath string) (string, error) {
	parent := filepath.Dir(uuidPath)
	uuidBase := filepath.Base(uuidPath)

	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", fmt.Errorf("find name symlink: %w", err)
	}
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(parent, entry.Name()))
		if err != nil {
			continue
		}
		if filepath.Base(target) == uuidBase {
			return entry.Name(), nil
		}
	}
	return "", fmt.Errorf("no name symlink found for %s", uuidBase)
}

// readAlbumAssets reads the asset symlinks inside an album's UUID
// directory, returning the (asset_uuid -> linked_filename) map.
func (s *Store) readAlbumAssets(uuidPath string, warn func(string, error)) map[string]string {
	out := map[string]string{}
	entries, err := os.ReadDir(uuidPath)
	if err != nil {
		if warn != nil {
			warn(uuidPath, err)
		}
		return out
	}
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		linkPath := filepath.Join(uuidPath, entry.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			if warn != nil {
				warn(linkPath, err)
			}
			continue
		}
		base := filepath.Base(target)
		uuid, _, ok := splitAssetFilename(base)
		if !ok {
			if warn != nil {
				warn(linkPath, fmt.Errorf("asset symlink target %q is not <uuid>.<ext>", base))
			}
			continue
		}
		out[uuid] = entry.Name()
	}
	return out
}
