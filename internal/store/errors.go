package store

import "errors"

// Sentinel errors for Library Store operations (§4.1, §7's Filesystem
// kind), checked with errors.Is.
var (
	// ErrAlreadyExists is returned by write_album when either the name
	// path or the UUID path already exists.
	ErrAlreadyExists = errors.New("store: album path already exists")

	// ErrNotEmpty is returned by delete_album when the UUID directory
	// contains anything other than symlinks or safe-named files.
	ErrNotEmpty = errors.New("store: album directory is not empty")

	// ErrParentNotFound is returned by find_album_paths when the parent
	// UUID directory cannot be located anywhere under the data directory.
	ErrParentNotFound = errors.New("store: parent album not found")

	// ErrAmbiguousTree is returned by find_album_paths when more than one
	// directory matches a parent UUID (an I3 violation), and by
	// clean_archived_orphans when the collision-suffix search is
	// exhausted.
	ErrAmbiguousTree = errors.New("store: ambiguous tree")

	// ErrMoveSourceMissing is returned by move_path_tuple when either
	// source path (name symlink or UUID directory) is absent.
	ErrMoveSourceMissing = errors.New("store: move source missing")

	// ErrMoveDestinationExists is returned by move_path_tuple when either
	// destination path already exists.
	ErrMoveDestinationExists = errors.New("store: move destination exists")

	// ErrVerificationFailed is returned by write_asset when the
	// post-write verify_asset check does not pass.
	ErrVerificationFailed = errors.New("store: asset verification failed")
)
