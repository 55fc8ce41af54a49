// Package remote defines the contracts the engine expects from the
// authentication/transport collaborator (§1: out of scope; specified
// here only as the interfaces enginesync compiles and tests against).
package remote

import (
	"context"
	"io"

	"github.com/ivoronin/icloudmirror/internal/asset"
	"github.com/ivoronin/icloudmirror/internal/resources"
)

// AlbumListing is the remote-reported shape of an album, carrying the
// same fields as album.Album minus anything the engine derives itself.
type AlbumListing struct {
	UUID        string
	Kind        string // "folder" or "album"; archived/root never appear remotely
	DisplayName string
	ParentUUID  string
	Assets      map[string]string // asset uuid -> linked filename
}

// AssetListing is the remote-reported shape of an asset.
type AssetListing struct {
	UUID         string
	FilenameStem string
	Extension    string
	SizeBytes    int64
	ContentHash  []byte
	ModifiedTime int64 // unix seconds UTC
	Kind         asset.Kind
}

// Client is the network collaborator's contract: listing remote state
// for a zone and opening a byte stream to download one asset. Auth, MFA,
// and HTTP transport details live entirely behind this interface.
type Client interface {
	// ListAlbums returns every album in zone. The synthetic root is not
	// listed; the engine maps every returned listing to a folder or album.
	ListAlbums(ctx context.Context, zone resources.Zone) ([]AlbumListing, error)
	// ListAssets returns every asset in zone.
	ListAssets(ctx context.Context, zone resources.Zone) ([]AssetListing, error)
	// Download opens a stream of the given asset's bytes. The caller
	// closes the returned ReadCloser.
	Download(ctx context.Context, zone resources.Zone, uuid string) (io.ReadCloser, error)
	// DeleteRemote deletes an asset on the remote service. Nothing in
	// this module calls it; Config.RemoteDelete is only carried in Config.
	DeleteRemote(ctx context.Context, zone resources.Zone, uuid string) error
}

// Validator is the JSON-schema-validation collaborator's contract (§1:
// out of scope). The engine never constructs or calls one directly; it
// exists so callers that do own configuration validation upstream of
// resources.Config can be swapped without touching the engine.
type Validator interface {
	Validate(doc []byte) error
}

// ErrUUIDNotFound is returned by a Client implementation when an asset
// or album UUID the caller asked for does not exist in the given zone.
var ErrUUIDNotFound = errUUIDNotFound{}

type errUUIDNotFound struct{}

func (errUUIDNotFound) Error() string { return "remote: uuid not found" }
