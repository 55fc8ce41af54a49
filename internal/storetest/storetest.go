// Package storetest provides a declarative filesystem-tree harness for
// building and asserting dual-path album trees, backed by a single
// in-process t.TempDir directory.
package storetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ivoronin/icloudmirror/internal/album"
)

// AlbumSpec declaratively describes one album node to create under a
// Tree. Children nest AlbumSpecs for folders.
type AlbumSpec struct {
	UUID        string
	Kind        album.Kind
	DisplayName string
	// Assets maps asset uuid -> linked filename, used when Kind is
	// KindAlbum. AssetExts resolves each asset uuid to an extension so
	// the harness can point the symlink at a plausible asset path
	// without requiring the asset file to actually exist.
	Assets    map[string]string
	AssetExts map[string]string
	// ArchivedFiles lists plain filenames to create inside an archived
	// album's UUID directory (opaque user content).
	ArchivedFiles []string
	Children      []AlbumSpec
}

// Harness builds a temp directory tree from a Tree spec using t.TempDir.
type Harness struct {
	t        *testing.T
	root     string
	assetDir string
}

// Tree is the top-level specification: the asset directory's file list
// plus the top-level album specs.
type Tree struct {
	Assets []string // filenames, e.g. "p1.jpg"
	Albums []AlbumSpec
}

// New creates a Harness rooted at a fresh temp directory and populates it
// according to spec.
func New(t *testing.T, spec Tree) *Harness {
	t.Helper()
	root := t.TempDir()
	h := &Harness{t: t, root: root, assetDir: filepath.Join(root, "_All-Photos")}

	if err := os.MkdirAll(h.assetDir, 0o755); err != nil {
		t.Fatalf("storetest: mkdir asset dir: %v", err)
	}
	for _, name := range spec.Assets {
		if err := os.WriteFile(filepath.Join(h.assetDir, name), []byte("content:"+name), 0o644); err != nil {
			t.Fatalf("storetest: write asset %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "_Archive", "_Stash"), 0o755); err != nil {
		t.Fatalf("storetest: mkdir archive dirs: %v", err)
	}

	for _, a := range spec.Albums {
		h.buildAlbum(root, a)
	}
	return h
}

func (h *Harness) buildAlbum(parentDir string, a AlbumSpec) {
	h.t.Helper()
	uuidPath := filepath.Join(parentDir, album.UUIDDirName(a.UUID))
	namePath := filepath.Join(parentDir, album.SanitizeDisplayName(a.DisplayName))

	if err := os.MkdirAll(uuidPath, 0o755); err != nil {
		h.t.Fatalf("storetest: mkdir %s: %v", uuidPath, err)
	}
	rel, err := filepath.Rel(parentDir, uuidPath)
	if err != nil {
		h.t.Fatalf("storetest: rel: %v", err)
	}
	if err := os.Symlink(rel, namePath); err != nil {
		h.t.Fatalf("storetest: symlink %s: %v", namePath, err)
	}

	switch a.Kind {
	case album.KindAlbum:
		for assetUUID, linkedName := range a.Assets {
			ext := a.AssetExts[assetUUID]
			target := filepath.Join(h.assetDir, assetUUID+"."+ext)
			relTarget, err := filepath.Rel(uuidPath, target)
			if err != nil {
				h.t.Fatalf("storetest: rel target: %v", err)
			}
			if err := os.Symlink(relTarget, filepath.Join(uuidPath, linkedName)); err != nil {
				h.t.Fatalf("storetest: symlink asset %s: %v", linkedName, err)
			}
		}
	case album.KindArchived:
		for _, name := range a.ArchivedFiles {
			if err := os.WriteFile(filepath.Join(uuidPath, name), []byte("archived:"+name), 0o644); err != nil {
				h.t.Fatalf("storetest: write archived file %s: %v", name, err)
			}
		}
	case album.KindFolder:
		for _, child := range a.Children {
			h.buildAlbum(uuidPath, child)
		}
	}
}

// Root returns the harness's temp directory root.
func (h *Harness) Root() string {
	return h.root
}

// AssertExists fails the test if path (relative to Root) does not exist.
func (h *Harness) AssertExists(relPath string) {
	h.t.Helper()
	if _, err := os.Lstat(filepath.Join(h.root, relPath)); err != nil {
		h.t.Errorf("storetest: expected %s to exist: %v", relPath, err)
	}
}

// AssertNotExists fails the test if path (relative to Root) exists.
func (h *Harness) AssertNotExists(relPath string) {
	h.t.Helper()
	if _, err := os.Lstat(filepath.Join(h.root, relPath)); err == nil {
		h.t.Errorf("storetest: expected %s to not exist", relPath)
	}
}

// AssertSymlinkTarget fails the test if the symlink at relPath does not
// resolve (relatively) to wantTarget.
func (h *Harness) AssertSymlinkTarget(relPath, wantTarget string) {
	h.t.Helper()
	got, err := os.Readlink(filepath.Join(h.root, relPath))
	if err != nil {
		h.t.Errorf("storetest: readlink %s: %v", relPath, err)
		return
	}
	if got != wantTarget {
		h.t.Errorf("storetest: symlink %s -> %q, want %q", relPath, got, wantTarget)
	}
}
