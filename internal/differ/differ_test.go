package differ

import (
	"testing"

	"github.com/ivoronin/icloudmirror/internal/album"
	"github.com/ivoronin/icloudmirror/internal/asset"
)

func kindsInOrder(ops []Operation) []OpKind {
	out := make([]OpKind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func TestDiffEmptyIsEmpty(t *testing.T) {
	plan := Diff(nil, nil, nil, nil, nil)
	if len(plan) != 0 {
		t.Fatalf("Diff(nil...) = %v, want empty", plan)
	}
}

// P2: idempotence under re-run.
func TestDiffIdempotentWhenUnchanged(t *testing.T) {
	assets := map[string]asset.Asset{"p1": {UUID: "p1", SizeBytes: 10}}
	albums := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Vacation", Assets: map[string]string{"p1": "a1.jpg"}},
	}

	plan := Diff(albums, assets, albums, assets, nil)
	if len(plan) != 0 {
		t.Fatalf("Diff() on unchanged state = %v, want empty plan", plan)
	}
}

// Scenario 1: fresh sync.
func TestDiffFreshSyncScenario(t *testing.T) {
	remoteAssets := map[string]asset.Asset{
		"p1": {UUID: "p1", SizeBytes: 10},
		"p2": {UUID: "p2", SizeBytes: 20},
	}
	remoteAlbums := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Vacation",
			Assets: map[string]string{"p1": "a1.jpg", "p2": "a2.jpg"}},
	}

	plan := Diff(remoteAlbums, remoteAssets, nil, nil, nil)

	wantKinds := []OpKind{OpAssetAdd, OpAssetAdd, OpAlbumAdd}
	if got := kindsInOrder(plan); !equalKinds(got, wantKinds) {
		t.Fatalf("kinds = %v, want %v", got, wantKinds)
	}
	// Tie-break: p1 before p2 (UUID ascending).
	if plan[0].Asset.UUID != "p1" || plan[1].Asset.UUID != "p2" {
		t.Errorf("asset add order = %s,%s, want p1,p2", plan[0].Asset.UUID, plan[1].Asset.UUID)
	}
	if plan[2].Album.UUID != "aaa" {
		t.Errorf("album op = %s, want aaa", plan[2].Album.UUID)
	}
}

// Scenario 2: rename, same UUID, no asset re-download.
func TestDiffRenameScenario(t *testing.T) {
	assets := map[string]asset.Asset{"p1": {UUID: "p1", SizeBytes: 10}}
	local := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Vacation", Assets: map[string]string{"p1": "a1.jpg"}},
	}
	remote := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Holiday", Assets: map[string]string{"p1": "a1.jpg"}},
	}

	plan := Diff(remote, assets, local, assets, nil)
	if len(plan) != 1 {
		t.Fatalf("Diff() = %v, want exactly one rename op", plan)
	}
	if plan[0].Kind != OpAlbumRename {
		t.Fatalf("Kind = %v, want OpAlbumRename", plan[0].Kind)
	}
	if plan[0].Album.DisplayName != "Holiday" || plan[0].OldAlbum.DisplayName != "Vacation" {
		t.Errorf("rename op = %+v, want Vacation->Holiday", plan[0])
	}
}

// Scenario 3: archive stash when remote deletes an archived album.
func TestDiffArchiveStashScenario(t *testing.T) {
	local := map[string]album.Album{
		"bbb": {UUID: "bbb", Kind: album.KindArchived, DisplayName: "Holiday"},
	}

	plan := Diff(nil, nil, local, nil, nil)
	if len(plan) != 1 || plan[0].Kind != OpAlbumArchiveStash {
		t.Fatalf("Diff() = %v, want single AlbumArchiveStash", plan)
	}
	if plan[0].Album.UUID != "bbb" {
		t.Errorf("stashed uuid = %s, want bbb", plan[0].Album.UUID)
	}
}

// Scenario 6: stash round trip, retrieval instead of add.
func TestDiffStashRetrieveScenario(t *testing.T) {
	stashed := map[string]album.Album{
		"eee": {UUID: "eee", Kind: album.KindArchived, DisplayName: "Trip"},
	}
	remote := map[string]album.Album{
		"eee": {UUID: "eee", Kind: album.KindArchived, DisplayName: "Trip"},
	}

	plan := Diff(remote, nil, nil, nil, stashed)
	if len(plan) != 1 || plan[0].Kind != OpAlbumArchiveRetrieve {
		t.Fatalf("Diff() = %v, want single AlbumArchiveRetrieve", plan)
	}
}

func TestDiffArchivedAlbumStillRemoteIsNoOp(t *testing.T) {
	local := map[string]album.Album{
		"bbb": {UUID: "bbb", Kind: album.KindArchived, DisplayName: "Holiday"},
	}
	remote := map[string]album.Album{
		"bbb": {UUID: "bbb", Kind: album.KindFolder, DisplayName: "Holiday"},
	}
	plan := Diff(remote, nil, local, nil, nil)
	if len(plan) != 0 {
		t.Fatalf("Diff() = %v, want empty (archived content is engine-opaque)", plan)
	}
}

func TestDiffOrderingAssetAddsBeforeAlbumAdd(t *testing.T) {
	assets := map[string]asset.Asset{"p1": {UUID: "p1", SizeBytes: 5}}
	albums := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "A", Assets: map[string]string{"p1": "a.jpg"}},
	}
	plan := Diff(albums, assets, nil, nil, nil)
	if len(plan) != 2 || plan[0].Kind != OpAssetAdd || plan[1].Kind != OpAlbumAdd {
		t.Fatalf("kinds = %v, want [AssetAdd, AlbumAdd]", kindsInOrder(plan))
	}
}

func TestDiffOrderingAlbumRemovesBeforeAssetRemove(t *testing.T) {
	assets := map[string]asset.Asset{"p1": {UUID: "p1", SizeBytes: 5}}
	albums := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "A", Assets: map[string]string{"p1": "a.jpg"}},
	}
	plan := Diff(nil, nil, albums, assets, nil)
	if len(plan) != 2 || plan[0].Kind != OpAlbumRemove || plan[1].Kind != OpAssetRemove {
		t.Fatalf("kinds = %v, want [AlbumRemove, AssetRemove]", kindsInOrder(plan))
	}
}

func TestDiffOrderingAlbumAddsParentBeforeChild(t *testing.T) {
	remote := map[string]album.Album{
		"child":  {UUID: "child", Kind: album.KindAlbum, DisplayName: "Child", ParentUUID: "parent"},
		"parent": {UUID: "parent", Kind: album.KindFolder, DisplayName: "Parent"},
	}
	plan := Diff(remote, nil, nil, nil, nil)
	if len(plan) != 2 {
		t.Fatalf("Diff() = %v, want 2 ops", plan)
	}
	if plan[0].Album.UUID != "parent" || plan[1].Album.UUID != "child" {
		t.Fatalf("order = %s,%s, want parent,child", plan[0].Album.UUID, plan[1].Album.UUID)
	}
}

func TestDiffOrderingAlbumRemovesChildBeforeParent(t *testing.T) {
	local := map[string]album.Album{
		"child":  {UUID: "child", Kind: album.KindAlbum, DisplayName: "Child", ParentUUID: "parent"},
		"parent": {UUID: "parent", Kind: album.KindFolder, DisplayName: "Parent"},
	}
	plan := Diff(nil, nil, local, nil, nil)
	if len(plan) != 2 {
		t.Fatalf("Diff() = %v, want 2 ops", plan)
	}
	if plan[0].Album.UUID != "child" || plan[1].Album.UUID != "parent" {
		t.Fatalf("order = %s,%s, want child,parent", plan[0].Album.UUID, plan[1].Album.UUID)
	}
}

func TestDiffArchiveStashPrecedesSiblingRemove(t *testing.T) {
	local := map[string]album.Album{
		"archived": {UUID: "archived", Kind: album.KindArchived, DisplayName: "Keep"},
		"toremove": {UUID: "toremove", Kind: album.KindAlbum, DisplayName: "Gone"},
	}
	plan := Diff(nil, nil, local, nil, nil)
	if len(plan) != 2 {
		t.Fatalf("Diff() = %v, want 2 ops", plan)
	}
	if plan[0].Kind != OpAlbumArchiveStash || plan[1].Kind != OpAlbumRemove {
		t.Fatalf("kinds = %v, want [AlbumArchiveStash, AlbumRemove]", kindsInOrder(plan))
	}
}

// Re-parent: a present album's ParentUUID changes between local and
// remote (spec.md:39 "remote re-parenting moves both sides atomically").
func TestDiffMoveScenario(t *testing.T) {
	assets := map[string]asset.Asset{"p1": {UUID: "p1", SizeBytes: 10}}
	local := map[string]album.Album{
		"folderA": {UUID: "folderA", Kind: album.KindFolder, DisplayName: "A"},
		"folderB": {UUID: "folderB", Kind: album.KindFolder, DisplayName: "B"},
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Vacation",
			ParentUUID: "folderA", Assets: map[string]string{"p1": "a1.jpg"}},
	}
	remote := map[string]album.Album{
		"folderA": {UUID: "folderA", Kind: album.KindFolder, DisplayName: "A"},
		"folderB": {UUID: "folderB", Kind: album.KindFolder, DisplayName: "B"},
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Vacation",
			ParentUUID: "folderB", Assets: map[string]string{"p1": "a1.jpg"}},
	}

	plan := Diff(remote, assets, local, assets, nil)
	if len(plan) != 1 {
		t.Fatalf("Diff() = %v, want exactly one move op", plan)
	}
	if plan[0].Kind != OpAlbumMove {
		t.Fatalf("Kind = %v, want OpAlbumMove", plan[0].Kind)
	}
	if plan[0].OldAlbum.ParentUUID != "folderA" || plan[0].Album.ParentUUID != "folderB" {
		t.Errorf("move op = %+v, want folderA->folderB", plan[0])
	}
}

// Re-parent and rename together: one move op, not a move plus a rename.
func TestDiffMoveScenarioWithSimultaneousRename(t *testing.T) {
	local := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Vacation", ParentUUID: "folderA"},
	}
	remote := map[string]album.Album{
		"aaa": {UUID: "aaa", Kind: album.KindAlbum, DisplayName: "Holiday", ParentUUID: "folderB"},
	}

	plan := Diff(remote, nil, local, nil, nil)
	if len(plan) != 1 || plan[0].Kind != OpAlbumMove {
		t.Fatalf("Diff() = %v, want single AlbumMove", plan)
	}
	if plan[0].Album.DisplayName != "Holiday" {
		t.Errorf("moved album display name = %q, want Holiday (picked up for free)", plan[0].Album.DisplayName)
	}
}

func TestDiffAssetAddOnSizeMismatch(t *testing.T) {
	remote := map[string]asset.Asset{"p1": {UUID: "p1", SizeBytes: 100}}
	local := map[string]asset.Asset{"p1": {UUID: "p1", SizeBytes: 50}}
	plan := Diff(nil, remote, nil, local, nil)
	if len(plan) != 1 || plan[0].Kind != OpAssetAdd {
		t.Fatalf("Diff() = %v, want single AssetAdd on size mismatch", plan)
	}
}

func equalKinds(a, b []OpKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
