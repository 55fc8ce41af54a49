package resources

import (
	"os"

	"github.com/moby/sys/atomicwriter"
)

// writeFileAtomic writes data to path such that a concurrent reader (or a
// crash mid-write) never observes a partially-written file: the content
// lands in a temp file in the same directory and is renamed into place.
// This is the same temp-then-rename safety property link creation
// elsewhere in the store relies on; here it backs the resource file
// (§3 "Resource file. ... Written atomically on mutation").
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return atomicwriter.WriteFile(path, data, perm)
}
