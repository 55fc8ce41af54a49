package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/ivoronin/icloudmirror/internal/resources"
)

// FakeClient is an in-memory Client double: state is assembled
// declaratively (AddAlbum/AddAsset), then mutated between sync runs to
// model a changing remote (RemoveAlbum/RemoveAsset/RenameAlbum/MoveAlbum) and read back
// through the Client interface exactly like a real collaborator would be.
type FakeClient struct {
	mu       sync.Mutex
	albums   map[string][]AlbumListing // zone ID -> albums
	assets   map[string][]AssetListing // zone ID -> assets
	contents map[string][]byte         // asset uuid -> bytes
	deleted  map[string]bool           // asset uuid -> DeleteRemote was called
}

// NewFakeClient returns an empty fake with no zones populated.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		albums:   make(map[string][]AlbumListing),
		assets:   make(map[string][]AssetListing),
		contents: make(map[string][]byte),
		deleted:  make(map[string]bool),
	}
}

// AddAlbum registers an album listing in zone.
func (f *FakeClient) AddAlbum(zone resources.Zone, a AlbumListing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums[zone.ID] = append(f.albums[zone.ID], a)
}

// RemoveAlbum deletes the album with uuid from zone, modeling a remote
// deletion between sync runs.
func (f *FakeClient) RemoveAlbum(zone resources.Zone, uuid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.albums[zone.ID][:0]
	for _, a := range f.albums[zone.ID] {
		if a.UUID != uuid {
			kept = append(kept, a)
		}
	}
	f.albums[zone.ID] = kept
}

// RenameAlbum updates the display name of the album with uuid in zone,
// keeping its UUID unchanged (scenario 2: rename).
func (f *FakeClient) RenameAlbum(zone resources.Zone, uuid, newName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.albums[zone.ID] {
		if a.UUID == uuid {
			f.albums[zone.ID][i].DisplayName = newName
		}
	}
}

// MoveAlbum updates the parent UUID of the album with uuid in zone,
// keeping its UUID unchanged (spec.md:39: remote re-parenting).
func (f *FakeClient) MoveAlbum(zone resources.Zone, uuid, newParentUUID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.albums[zone.ID] {
		if a.UUID == uuid {
			f.albums[zone.ID][i].ParentUUID = newParentUUID
		}
	}
}

// AddAsset registers an asset listing and its bytes in zone. The content
// hash is computed from content if a.ContentHash is nil.
func (f *FakeClient) AddAsset(zone resources.Zone, a AssetListing, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ContentHash == nil {
		sum := sha256.Sum256(content)
		a.ContentHash = sum[:]
	}
	if a.SizeBytes == 0 {
		a.SizeBytes = int64(len(content))
	}
	f.assets[zone.ID] = append(f.assets[zone.ID], a)
	f.contents[a.UUID] = content
}

// RemoveAsset deletes the asset with uuid from zone.
func (f *FakeClient) RemoveAsset(zone resources.Zone, uuid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.assets[zone.ID][:0]
	for _, a := range f.assets[zone.ID] {
		if a.UUID != uuid {
			kept = append(kept, a)
		}
	}
	f.assets[zone.ID] = kept
}

// ListAlbums implements Client.
func (f *FakeClient) ListAlbums(_ context.Context, zone resources.Zone) ([]AlbumListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AlbumListing, len(f.albums[zone.ID]))
	copy(out, f.albums[zone.ID])
	return out, nil
}

// ListAssets implements Client.
func (f *FakeClient) ListAssets(_ context.Context, zone resources.Zone) ([]AssetListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AssetListing, len(f.assets[zone.ID]))
	copy(out, f.assets[zone.ID])
	return out, nil
}

// Download implements Client.
func (f *FakeClient) Download(_ context.Context, _ resources.Zone, uuid string) (io.ReadCloser, error) {
	f.mu.Lock()
	content, ok := f.contents[uuid]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("download %s: %w", uuid, ErrUUIDNotFound)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// DeleteRemote implements Client. It records the call rather than
// actually removing the asset, so tests can assert on RemoteDelete
// handling without the delete having further side effects on ListAssets.
func (f *FakeClient) DeleteRemote(_ context.Context, _ resources.Zone, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contents[uuid]; !ok {
		return fmt.Errorf("delete remote %s: %w", uuid, ErrUUIDNotFound)
	}
	f.deleted[uuid] = true
	return nil
}

// WasDeleted reports whether DeleteRemote was called for uuid.
func (f *FakeClient) WasDeleted(uuid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[uuid]
}

var _ Client = (*FakeClient)(nil)
