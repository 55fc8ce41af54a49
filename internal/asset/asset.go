// Package asset defines the immutable descriptor of a remote media asset
// and its on-disk naming convention.
package asset

import (
	"fmt"
	"time"
)

// Kind classifies the role an asset plays in the remote library.
type Kind int

const (
	// KindOriginal is the primary, unedited capture.
	KindOriginal Kind = iota
	// KindEdited is a derived, user-edited rendition.
	KindEdited
	// KindLivePhotoVideo is the video companion of a live photo.
	KindLivePhotoVideo
)

// String renders the kind for logs and event payloads.
func (k Kind) String() string {
	switch k {
	case KindOriginal:
		return "original"
	case KindEdited:
		return "edited"
	case KindLivePhotoVideo:
		return "live_photo_video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Asset is an immutable descriptor of a single remote media asset.
//
// Identity is by UUID alone; two Assets with the same UUID are the same
// asset regardless of any other field. Asset values are never mutated in
// place — a changed remote asset is represented by a new value.
type Asset struct {
	UUID         string
	FilenameStem string
	Extension    string
	SizeBytes    int64
	ContentHash  string // remote-provided, used for verify
	ModifiedTime time.Time
	Kind         Kind
}

// Filename is the name the asset is stored under in the asset directory:
// "<uuid>.<ext>". The library never renames this file (invariant I5).
func (a Asset) Filename() string {
	return a.UUID + "." + a.Extension
}

// Equal reports whether two assets describe the same remote object with
// the same observable metadata. Identity (UUID) equality is weaker and is
// what callers should use for "is this the same asset" questions; Equal
// is for "would writing this asset change anything on disk".
func (a Asset) Equal(other Asset) bool {
	return a.UUID == other.UUID &&
		a.FilenameStem == other.FilenameStem &&
		a.Extension == other.Extension &&
		a.SizeBytes == other.SizeBytes &&
		a.ContentHash == other.ContentHash &&
		a.ModifiedTime.Equal(other.ModifiedTime) &&
		a.Kind == other.Kind
}

// String renders the asset for logs.
func (a Asset) String() string {
	return fmt.Sprintf("asset(%s %s, %d bytes, %s)", a.UUID, a.Filename(), a.SizeBytes, a.Kind)
}
