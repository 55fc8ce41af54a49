package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// resourceFileName is the on-disk name of the resource file (§3).
const resourceFileName = ".photos-library.db"

// currentLibraryVersion is written into a freshly-created resource file.
const currentLibraryVersion = 1

// document is the JSON shape of the resource file: "{libraryVersion:
// integer, trustToken?: string}" (§6).
type document struct {
	LibraryVersion int    `json:"libraryVersion"`
	TrustToken     string `json:"trustToken,omitempty"`
}

// ErrInvalidResourceFile is returned when the resource file exists but
// cannot be parsed as the recognized JSON document (§7, Configuration kind).
var ErrInvalidResourceFile = errors.New("invalid resource file")

// loadDocument reads the resource file at dataDir. A missing file is not
// an error — it returns a fresh document at the current library version
// (§6: "Absent file is not an error; the engine creates one").
func loadDocument(dataDir string) (document, error) {
	path := filepath.Join(dataDir, resourceFileName)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return document{LibraryVersion: currentLibraryVersion}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("read resource file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("%w: %w", ErrInvalidResourceFile, err)
	}
	return doc, nil
}

// saveDocument writes the resource file atomically (§3).
func saveDocument(dataDir string, doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode resource file: %w", err)
	}
	path := filepath.Join(dataDir, resourceFileName)
	if err := writeFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrUnableToWriteFile, err)
	}
	return nil
}

// ErrUnableToWriteFile is the resource-file-write kind from §7; callers
// treat it as a warning, not a run-aborting failure.
var ErrUnableToWriteFile = errors.New("unable to write resource file")
