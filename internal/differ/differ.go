// Package differ computes the minimal, deterministically ordered
// sequence of write operations that transforms the current local state
// into the remote state, honoring archive semantics (§4.2). Diff is a
// pure function: it does no I/O and depends only on its arguments.
package differ

import (
	"fmt"

	"github.com/ivoronin/icloudmirror/internal/album"
	"github.com/ivoronin/icloudmirror/internal/asset"
	"github.com/ivoronin/icloudmirror/internal/types"
)

// OpKind identifies the kind of write operation (§4.2's six kinds, plus
// AlbumRename and AlbumMove — see §9's Open Question resolution).
type OpKind int

const (
	OpAssetAdd OpKind = iota
	OpAssetRemove
	OpAlbumAdd
	OpAlbumRemove
	OpAlbumArchiveStash
	OpAlbumArchiveRetrieve
	OpAlbumRename
	OpAlbumMove
)

// String renders the operation kind for logs and event payloads.
func (k OpKind) String() string {
	switch k {
	case OpAssetAdd:
		return "AssetAdd"
	case OpAssetRemove:
		return "AssetRemove"
	case OpAlbumAdd:
		return "AlbumAdd"
	case OpAlbumRemove:
		return "AlbumRemove"
	case OpAlbumArchiveStash:
		return "AlbumArchiveStash"
	case OpAlbumArchiveRetrieve:
		return "AlbumArchiveRetrieve"
	case OpAlbumRename:
		return "AlbumRename"
	case OpAlbumMove:
		return "AlbumMove"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Operation is a single planned write, one entry in the ordered plan
// Diff produces. OldAlbum is populated only for OpAlbumRename and
// OpAlbumMove, carrying the prior on-disk album value being replaced.
type Operation struct {
	Kind     OpKind
	Asset    asset.Asset
	Album    album.Album
	OldAlbum album.Album
}

// String renders the operation for logs.
func (op Operation) String() string {
	switch op.Kind {
	case OpAssetAdd, OpAssetRemove:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Asset.UUID)
	case OpAlbumRename:
		return fmt.Sprintf("%s(%s %q->%q)", op.Kind, op.Album.UUID, op.OldAlbum.DisplayName, op.Album.DisplayName)
	case OpAlbumMove:
		return fmt.Sprintf("%s(%s %q->%q)", op.Kind, op.Album.UUID, op.OldAlbum.ParentUUID, op.Album.ParentUUID)
	default:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Album.UUID)
	}
}

// Diff computes the ordered operation list to transform localAlbums and
// localAssets into remoteAlbums and remoteAssets (§4.2). stashedAlbums is
// the current content of the stash directory, needed to detect the
// stashed -> archived_present retrieval transition (scenario 6).
//
// Ordering follows the four mandatory rules: all AssetAdd before any
// AlbumAdd; all AlbumRemove before any AssetRemove; album adds proceed
// parent-before-child (ascending depth), album removes child-before-
// parent (descending depth); archive stash precedes any sibling remove.
// Ties within a rank break on UUID ascending, via the same
// types.Sorted generic used for deterministic ordering elsewhere.
func Diff(
	remoteAlbums map[string]album.Album,
	remoteAssets map[string]asset.Asset,
	localAlbums map[string]album.Album,
	localAssets map[string]asset.Asset,
	stashedAlbums map[string]album.Album,
) []Operation {
	var (
		assetAdds    []Operation
		assetRemoves []Operation
		albumAdds    []Operation // AlbumAdd + AlbumRename + AlbumMove
		albumRemoves []Operation
		archiveStash []Operation
		archiveRetrv []Operation
	)

	for uuid, remoteAsset := range remoteAssets {
		localAsset, ok := localAssets[uuid]
		if !ok || needsRedownload(remoteAsset, localAsset) {
			assetAdds = append(assetAdds, Operation{Kind: OpAssetAdd, Asset: remoteAsset})
		}
	}
	for uuid, localAsset := range localAssets {
		if _, ok := remoteAssets[uuid]; !ok {
			assetRemoves = append(assetRemoves, Operation{Kind: OpAssetRemove, Asset: localAsset})
		}
	}

	for uuid, remoteAlbum := range remoteAlbums {
		localAlbum, present := localAlbums[uuid]
		switch {
		case !present:
			if stashed, wasStashed := stashedAlbums[uuid]; wasStashed {
				archiveRetrv = append(archiveRetrv, Operation{Kind: OpAlbumArchiveRetrieve, Album: stashed})
			} else {
				albumAdds = append(albumAdds, Operation{Kind: OpAlbumAdd, Album: remoteAlbum})
			}
		case localAlbum.Kind == album.KindArchived:
			// archived_present, remote still lists it: retain as-is,
			// contents are engine-opaque (§4.2 "Archive detection").
		case localAlbum.ParentUUID != remoteAlbum.ParentUUID:
			// Remote re-parenting moves both sides atomically (spec.md:39):
			// relocate the dual-path pair under its new parent. This also
			// picks up any simultaneous display-name change, since the move
			// destination is computed from remoteAlbum.
			albumAdds = append(albumAdds, Operation{Kind: OpAlbumMove, Album: remoteAlbum, OldAlbum: localAlbum})
		case localAlbum.DisplayName != remoteAlbum.DisplayName:
			albumAdds = append(albumAdds, Operation{Kind: OpAlbumRename, Album: remoteAlbum, OldAlbum: localAlbum})
		}
	}
	for uuid, localAlbum := range localAlbums {
		if _, present := remoteAlbums[uuid]; present {
			continue
		}
		if localAlbum.Kind == album.KindArchived {
			archiveStash = append(archiveStash, Operation{Kind: OpAlbumArchiveStash, Album: localAlbum})
		} else {
			albumRemoves = append(albumRemoves, Operation{Kind: OpAlbumRemove, Album: localAlbum})
		}
	}

	plan := make([]Operation, 0,
		len(assetAdds)+len(assetRemoves)+len(albumAdds)+len(albumRemoves)+len(archiveStash)+len(archiveRetrv))

	plan = append(plan, sortByUUID(assetAdds, opAssetUUID)...)
	plan = append(plan, sortByUUID(archiveRetrv, opAlbumUUID)...)
	plan = append(plan, sortByDepth(albumAdds, remoteAlbums, true)...)
	plan = append(plan, sortByUUID(archiveStash, opAlbumUUID)...)
	plan = append(plan, sortByDepth(albumRemoves, localAlbums, false)...)
	plan = append(plan, sortByUUID(assetRemoves, opAssetUUID)...)

	return plan
}

// needsRedownload reports whether a present local asset must still be
// re-fetched because its recorded size differs from the remote's. This
// is the cheap half of the check: the engine runs a content-hash
// verification pass over localAssets before calling Diff and removes
// any entry that fails it, so a present entry reaching here has already
// cleared the hash check — only the size signal remains to evaluate.
func needsRedownload(remote, local asset.Asset) bool {
	return remote.SizeBytes != local.SizeBytes
}

func opAssetUUID(op Operation) string { return op.Asset.UUID }
func opAlbumUUID(op Operation) string { return op.Album.UUID }

func sortByUUID(ops []Operation, key func(Operation) string) []Operation {
	return types.NewSorted(ops, key).Items()
}

// sortByDepth groups ops by their album's depth in tree (computed from
// albums, the album set whose ParentUUID chain is authoritative for this
// group — remote for adds, local for removes), then sorts depths
// ascending (adds) or descending (removes), with UUID-ascending as the
// tie-break within a depth.
func sortByDepth(ops []Operation, albums map[string]album.Album, ascending bool) []Operation {
	depthOf := func(op Operation) int { return depth(op.Album.UUID, albums) }

	byDepth := map[int][]Operation{}
	var depths []int
	for _, op := range ops {
		d := depthOf(op)
		if _, seen := byDepth[d]; !seen {
			depths = append(depths, d)
		}
		byDepth[d] = append(byDepth[d], op)
	}

	sortedDepths := types.NewSorted(depths, func(d int) int {
		if ascending {
			return d
		}
		return -d
	}).Items()

	out := make([]Operation, 0, len(ops))
	for _, d := range sortedDepths {
		out = append(out, sortByUUID(byDepth[d], opAlbumUUID)...)
	}
	return out
}

// depth counts the number of ancestors of uuid by walking ParentUUID
// chains within albums until reaching the synthetic root (""). Bounded
// by len(albums)+1 to tolerate (rather than infinite-loop on) a cyclic
// or dangling ParentUUID chain in malformed input.
func depth(uuid string, albums map[string]album.Album) int {
	d := 0
	seen := map[string]bool{}
	for {
		a, ok := albums[uuid]
		if !ok || a.ParentUUID == "" || seen[uuid] {
			return d
		}
		seen[uuid] = true
		uuid = a.ParentUUID
		d++
		if d > len(albums) {
			return d
		}
	}
}
