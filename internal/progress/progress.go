package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps progressbar with enabled/disabled handling.
// All methods are no-ops when disabled.
type Bar struct {
	bar *progressbar.ProgressBar
}

// PlanStats describes one sync run's write plan for display: how many
// assets will be fetched or removed, how many album operations are
// scheduled, and the total bytes the fetch phase will download.
type PlanStats struct {
	AssetAdds, AssetRemoves, AlbumOps int
	BytesToFetch                      int64
}

func (p PlanStats) String() string {
	return fmt.Sprintf("%d asset(s) to fetch (%s), %d to remove, %d album op(s)",
		p.AssetAdds, humanize.Bytes(uint64(p.BytesToFetch)), p.AssetRemoves, p.AlbumOps)
}

// New creates a progress bar.
// If enabled=false, returns a Bar where all methods are no-ops.
// Use total=-1 for spinner mode, or total>0 for determinate progress.
func New(enabled bool, total int64) *Bar {
	if !enabled {
		return &Bar{}
	}

	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
	}

	if total < 0 {
		// Spinner mode
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetElapsedTime(false),
		)
		return &Bar{bar: progressbar.NewOptions(-1, opts...)}
	}

	// Progress bar mode
	opts = append(opts, progressbar.OptionSetWidth(40))
	return &Bar{bar: progressbar.NewOptions64(total, opts...)}
}

// Set sets the progress bar to a specific value.
func (b *Bar) Set(n uint64) {
	if b.bar != nil {
		_ = b.bar.Set64(int64(n))
	}
}

// Describe updates the progress bar description to the given plan's
// stats summary.
func (b *Bar) Describe(stats PlanStats) {
	if b.bar != nil {
		b.bar.Describe(stats.String())
	}
}

// Finish completes the progress bar and prints a final summary line for
// the given plan's stats.
func (b *Bar) Finish(stats PlanStats) {
	if b.bar != nil {
		_ = b.bar.Finish()
		fmt.Fprintln(os.Stderr, "✔ "+stats.String())
	}
}

// Clear blanks the current progress line, used before printing a log line
// that would otherwise collide with an in-progress spinner render.
func Clear() {
	fmt.Fprint(os.Stderr, "\r\033[K")
}
