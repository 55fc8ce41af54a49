// Package album defines the hierarchical album/folder descriptor and the
// dual-path naming rules (display-name sanitization, safe-file detection)
// shared by the Differ and the Library Store.
package album

import (
	"fmt"
	"strings"
)

// Kind classifies an album node.
type Kind int

const (
	// KindRoot is the synthetic root of the tree. Never written, never listed.
	KindRoot Kind = iota
	// KindFolder contains only other albums; it has no asset links.
	KindFolder
	// KindAlbum contains only asset symlinks; it has no child directories.
	KindAlbum
	// KindArchived is user-owned content the engine never modifies.
	KindArchived
)

// String renders the kind for logs and event payloads.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindFolder:
		return "folder"
	case KindAlbum:
		return "album"
	case KindArchived:
		return "archived"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Album is a descriptor of a remote folder or album.
//
// Assets maps asset UUID to the linked filename used for that asset's
// symlink inside the album's UUID directory. Order between entries is not
// significant — the remote does not expose album ordering (see Non-goals).
type Album struct {
	UUID        string
	Kind        Kind
	DisplayName string
	ParentUUID  string // empty for root
	Assets      map[string]string
}

// String renders the album for logs.
func (a Album) String() string {
	return fmt.Sprintf("album(%s %q parent=%s kind=%s assets=%d)", a.UUID, a.DisplayName, a.ParentUUID, a.Kind, len(a.Assets))
}

// Equal reports whether two albums describe the same remote object with
// the same observable metadata (§8 P1: equal modulo asset-symlink mtimes,
// which are not part of the Album value at all).
func (a Album) Equal(other Album) bool {
	if a.UUID != other.UUID || a.Kind != other.Kind ||
		a.DisplayName != other.DisplayName || a.ParentUUID != other.ParentUUID {
		return false
	}
	if len(a.Assets) != len(other.Assets) {
		return false
	}
	for uuid, name := range a.Assets {
		if other.Assets[uuid] != name {
			return false
		}
	}
	return true
}

// SafeFiles is the fixed set of filenames ignored during kind detection
// and deletion-emptiness checks (§6: "Safe filenames").
var SafeFiles = map[string]bool{
	".DS_Store":    true,
	"Thumbs.db":    true,
	".directory":   true,
	"desktop.ini":  true,
	".localized":   true,
}

// IsSafeFile reports whether base (a filename, not a path) is ignored for
// the purposes of "contains real files" checks.
func IsSafeFile(base string) bool {
	return SafeFiles[base]
}

// dualPathReplacer strips characters that would be awkward or unsafe as a
// path component from a display name before it is used as a symlink name.
var dualPathReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"\x00", "",
)

// SanitizeDisplayName converts a remote display name into the name used
// for the user-facing symlink in the dual-path scheme. It never returns
// an empty string or a name beginning with "." (which would collide with
// the hidden UUID-directory convention).
func SanitizeDisplayName(name string) string {
	sanitized := dualPathReplacer.Replace(strings.TrimSpace(name))
	sanitized = strings.Trim(sanitized, ".")
	if sanitized == "" {
		return "untitled"
	}
	return sanitized
}

// UUIDDirName returns the hidden UUID directory name for an album: ".<uuid>".
func UUIDDirName(uuid string) string {
	return "." + uuid
}

// UUIDFromDirName strips the leading dot from a UUID directory's basename,
// returning the bare UUID. It returns false if name is not a UUID directory
// name (i.e. does not start with a dot).
func UUIDFromDirName(name string) (uuid string, ok bool) {
	if len(name) < 2 || name[0] != '.' {
		return "", false
	}
	return name[1:], true
}
