package enginesync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivoronin/icloudmirror/internal/asset"
	"github.com/ivoronin/icloudmirror/internal/cache"
	"github.com/ivoronin/icloudmirror/internal/remote"
	"github.com/ivoronin/icloudmirror/internal/resources"
	"github.com/ivoronin/icloudmirror/internal/store"
)

var testZone = resources.Zone{ID: "z1", Name: "Primary"}

func newTestEngine(t *testing.T, dryRun bool) (*Engine, *remote.FakeClient) {
	t.Helper()

	cfg := resources.Config{
		DataDir:         t.TempDir(),
		Username:        "user",
		Password:        "pass",
		DownloadThreads: 2,
		MaxRetries:      1,
		LogLevel:        resources.LogLevelInfo,
		MetadataRate:    resources.RateSpec{Count: 100, IntervalMS: 10},
		DryRun:          dryRun,
	}
	res, err := resources.New(cfg)
	if err != nil {
		t.Fatalf("resources.New() = %v", err)
	}

	c, err := cache.Open("")
	if err != nil {
		t.Fatalf("cache.Open() = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	s := store.New(cfg.DataDir, c, cfg.DownloadThreads)
	client := remote.NewFakeClient()

	return New(s, client, res, false), client
}

// TestEngineRunFreshSync mirrors spec scenario 1 end to end: an album
// with two assets, synced from an empty local tree.
func TestEngineRunFreshSync(t *testing.T) {
	e, client := newTestEngine(t, false)

	client.AddAlbum(testZone, remote.AlbumListing{
		UUID: "aaa", Kind: "album", DisplayName: "Vacation",
		Assets: map[string]string{"p1": "a1.jpg", "p2": "a2.jpg"},
	})
	client.AddAsset(testZone, remote.AssetListing{UUID: "p1", Extension: "jpg", Kind: asset.KindOriginal}, []byte("hello"))
	client.AddAsset(testZone, remote.AssetListing{UUID: "p2", Extension: "jpg", Kind: asset.KindOriginal}, []byte("world!"))

	events := e.Resources.Events.Subscribe()

	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if _, err := os.Lstat(filepath.Join(e.Store.AssetDir(), "p1.jpg")); err != nil {
		t.Errorf("expected p1.jpg written: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.Store.AssetDir(), "p2.jpg")); err != nil {
		t.Errorf("expected p2.jpg written: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.Store.DataDir, "Vacation")); err != nil {
		t.Errorf("expected Vacation name symlink: %v", err)
	}

	var sawDone, sawError bool
	var recordCompleted int
drain:
	for {
		select {
		case ev := <-events:
			switch ev.Label {
			case resources.EventDone:
				sawDone = true
			case resources.EventError:
				sawError = true
				t.Logf("unexpected error event: %v", ev.Err)
			case resources.EventRecordCompleted:
				recordCompleted++
			}
		default:
			break drain
		}
	}
	if !sawDone {
		t.Error("expected a DONE event")
	}
	if sawError {
		t.Error("expected no ERROR event on a clean run")
	}
	if recordCompleted != 2 {
		t.Errorf("RECORD_COMPLETED count = %d, want 2", recordCompleted)
	}
}

// TestEngineRunIsIdempotent re-runs against unchanged remote state (P2)
// and expects the second run to succeed with the mirrored asset still in
// place.
func TestEngineRunIsIdempotent(t *testing.T) {
	e, client := newTestEngine(t, false)
	client.AddAlbum(testZone, remote.AlbumListing{UUID: "aaa", Kind: "album", DisplayName: "Vacation",
		Assets: map[string]string{"p1": "a1.jpg"}})
	client.AddAsset(testZone, remote.AssetListing{UUID: "p1", Extension: "jpg"}, []byte("hello"))

	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() (1st) = %v", err)
	}
	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() (2nd) = %v", err)
	}

	if _, err := os.Lstat(filepath.Join(e.Store.AssetDir(), "p1.jpg")); err != nil {
		t.Errorf("expected p1.jpg still present: %v", err)
	}
}

// TestEngineRunDryRunWritesNothing verifies the dry-run path never
// touches the Store.
func TestEngineRunDryRunWritesNothing(t *testing.T) {
	e, client := newTestEngine(t, true)
	client.AddAlbum(testZone, remote.AlbumListing{UUID: "aaa", Kind: "album", DisplayName: "Vacation",
		Assets: map[string]string{"p1": "a1.jpg"}})
	client.AddAsset(testZone, remote.AssetListing{UUID: "p1", Extension: "jpg"}, []byte("hello"))

	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	entries, err := os.ReadDir(e.Store.DataDir)
	if err != nil {
		t.Fatalf("ReadDir() = %v", err)
	}
	for _, entry := range entries {
		if entry.Name() == store.AssetDirName || entry.Name() == store.ArchiveDirName {
			continue
		}
		// The resource file is written by resources.New, before Run.
		if entry.Name() == ".photos-library.db" {
			continue
		}
		t.Errorf("dry run wrote unexpected entry %s", entry.Name())
	}
	if _, err := os.Lstat(filepath.Join(e.Store.AssetDir(), "p1.jpg")); !os.IsNotExist(err) {
		t.Error("dry run must not write asset content")
	}
}

// TestEngineRunAlbumMove mirrors a remote re-parent (spec.md:39): an
// album moves from one folder to another between runs, and the relocated
// album must actually exist at its new on-disk location afterward.
func TestEngineRunAlbumMove(t *testing.T) {
	e, client := newTestEngine(t, false)
	client.AddAlbum(testZone, remote.AlbumListing{UUID: "folderA", Kind: "folder", DisplayName: "A"})
	client.AddAlbum(testZone, remote.AlbumListing{UUID: "folderB", Kind: "folder", DisplayName: "B"})
	client.AddAlbum(testZone, remote.AlbumListing{
		UUID: "aaa", Kind: "album", DisplayName: "Vacation", ParentUUID: "folderA",
		Assets: map[string]string{"p1": "a1.jpg"},
	})
	client.AddAsset(testZone, remote.AssetListing{UUID: "p1", Extension: "jpg"}, []byte("hello"))

	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() (1st) = %v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.Store.DataDir, "A", "Vacation")); err != nil {
		t.Fatalf("expected Vacation under A before move: %v", err)
	}

	client.MoveAlbum(testZone, "aaa", "folderB")

	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() (2nd) = %v", err)
	}

	if _, err := os.Lstat(filepath.Join(e.Store.DataDir, "A", "Vacation")); !os.IsNotExist(err) {
		t.Errorf("expected Vacation removed from A after move, got err=%v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.Store.DataDir, "B", "Vacation")); err != nil {
		t.Errorf("expected Vacation relocated under B: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.Store.AssetDir(), "p1.jpg")); err != nil {
		t.Errorf("expected p1.jpg to survive the move: %v", err)
	}
}

// TestEngineRunArchiveStashAndPromote mirrors spec scenario 3 across two
// runs: an archived album is stashed when its remote companion
// disappears, then promoted into the archive directory by
// CleanArchivedOrphans at the end of that same run.
func TestEngineRunArchiveStashAndPromote(t *testing.T) {
	e, client := newTestEngine(t, false)
	client.AddAlbum(testZone, remote.AlbumListing{UUID: "bbb", Kind: "album", DisplayName: "Holiday"})

	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() (1st) = %v", err)
	}

	// Simulate a user converting it to an archived album out-of-band by
	// dropping a real file in its uuid directory, then simulate the
	// remote deleting it.
	uuidPath := filepath.Join(e.Store.DataDir, ".bbb")
	if err := os.WriteFile(filepath.Join(uuidPath, "photo.jpg"), []byte("user content"), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
	client.RemoveAlbum(testZone, "bbb")

	if err := e.Run(context.Background(), testZone); err != nil {
		t.Fatalf("Run() (2nd) = %v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.Store.ArchiveDir(), "Holiday")); err != nil {
		t.Errorf("expected Holiday promoted to archive: %v", err)
	}
}
