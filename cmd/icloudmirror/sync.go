package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivoronin/icloudmirror/internal/cache"
	"github.com/ivoronin/icloudmirror/internal/enginesync"
	"github.com/ivoronin/icloudmirror/internal/progress"
	"github.com/ivoronin/icloudmirror/internal/resources"
	"github.com/ivoronin/icloudmirror/internal/store"
)

// syncOptions holds CLI flags for the sync command, bound 1:1 to
// resources.Config fields.
type syncOptions struct {
	dataDir  string
	username string
	password string

	trustToken   string
	refreshToken bool

	port int

	maxRetries      int
	downloadThreads int

	schedule string

	enableCrashReporting bool
	failOnMFA            bool
	force                bool
	remoteDelete         bool
	silent               bool
	logToCLI             bool
	suppressWarnings     bool
	exportMetrics        bool
	dryRun               bool

	logLevel string

	metadataRateCount      int
	metadataRateIntervalMS int

	cacheFile string
}

// newSyncCmd creates the sync subcommand.
func newSyncCmd() *cobra.Command {
	opts := &syncOptions{
		maxRetries:             5,
		downloadThreads:        4,
		port:                   10080,
		logLevel:               string(resources.LogLevelInfo),
		metadataRateCount:      20,
		metadataRateIntervalMS: 1000,
	}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the configured iCloud-style library into a local data directory",
		Long: `Runs one fetch -> diff -> write cycle against the configured remote zone,
writing a dual-path album tree and a flat, content-addressed asset
directory under --data-dir.

Use --dry-run to preview the computed write plan without touching the
data directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Local library root directory (required)")
	cmd.Flags().StringVar(&opts.username, "username", "", "Remote account username (required)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Remote account password (required)")
	cmd.Flags().StringVar(&opts.trustToken, "trust-token", "", "Override the stored trust token")
	cmd.Flags().BoolVar(&opts.refreshToken, "refresh-token", false, "Discard the stored trust token before authenticating")
	cmd.Flags().IntVar(&opts.port, "port", opts.port, "Local callback port for MFA (if required)")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", opts.maxRetries, "Per-asset download retry limit")
	cmd.Flags().IntVar(&opts.downloadThreads, "download-threads", opts.downloadThreads, "Write-phase asset download parallelism")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "External scheduler hint (not used by the engine itself)")
	cmd.Flags().BoolVar(&opts.enableCrashReporting, "enable-crash-reporting", false, "Enable crash reporting")
	cmd.Flags().BoolVar(&opts.failOnMFA, "fail-on-mfa", false, "Abort instead of prompting when MFA is required")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Bypass confirmation prompts")
	cmd.Flags().BoolVar(&opts.remoteDelete, "remote-delete", false,
		"Signal the upload collaborator to delete remote originals after archival convergence")
	cmd.Flags().BoolVar(&opts.silent, "silent", false, "Suppress non-error output")
	cmd.Flags().BoolVar(&opts.logToCLI, "log-to-cli", false, "Mirror structured logs to the CLI")
	cmd.Flags().BoolVar(&opts.suppressWarnings, "suppress-warnings", false, "Suppress WARN-level events")
	cmd.Flags().BoolVar(&opts.exportMetrics, "export-metrics", false, "Export run metrics")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Preview the write plan without applying it")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "trace|debug|info|warn|error")
	cmd.Flags().IntVar(&opts.metadataRateCount, "metadata-rate-count", opts.metadataRateCount,
		"Metadata-fetch token bucket size")
	cmd.Flags().IntVar(&opts.metadataRateIntervalMS, "metadata-rate-interval-ms", opts.metadataRateIntervalMS,
		"Metadata-fetch token bucket refill interval, in milliseconds")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to the verified-hash cache file (enables caching)")

	return cmd
}

func (o *syncOptions) toConfig() resources.Config {
	return resources.Config{
		DataDir:              o.dataDir,
		Username:             o.username,
		Password:             o.password,
		TrustToken:           o.trustToken,
		RefreshToken:         o.refreshToken,
		Port:                 o.port,
		MaxRetries:           o.maxRetries,
		DownloadThreads:      o.downloadThreads,
		Schedule:             o.schedule,
		EnableCrashReporting: o.enableCrashReporting,
		FailOnMFA:            o.failOnMFA,
		Force:                o.force,
		RemoteDelete:         o.remoteDelete,
		Silent:               o.silent,
		LogToCLI:             o.logToCLI,
		SuppressWarnings:     o.suppressWarnings,
		ExportMetrics:        o.exportMetrics,
		DryRun:               o.dryRun,
		LogLevel:             resources.LogLevel(o.logLevel),
		MetadataRate: resources.RateSpec{
			Count:      o.metadataRateCount,
			IntervalMS: o.metadataRateIntervalMS,
		},
		CacheFile: o.cacheFile,
	}
}

// runSync wires Shared Resources, the Local Library Store, and the Sync
// Engine, then runs one cycle.
func runSync(ctx context.Context, opts *syncOptions) error {
	cfg := opts.toConfig()

	res, err := resources.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	logEvents(res)

	client, primaryZone, sharedZone, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	res.SetZones(primaryZone, sharedZone)

	hashCache, err := cache.Open(cfg.CacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = hashCache.Close() }()

	s := store.New(cfg.DataDir, hashCache, cfg.DownloadThreads)
	e := enginesync.New(s, client, res, !cfg.Silent)

	return e.Run(ctx, primaryZone)
}

// logEvents drains the event bus to stderr, clearing any in-progress
// spinner line first.
func logEvents(res *resources.Resources) {
	events := res.Events.Subscribe()
	go func() {
		for ev := range events {
			var ee *resources.EventError
			if res.Config.SuppressWarnings && errors.As(ev.Err, &ee) && ee.Code == "Warning" {
				continue
			}
			progress.Clear()
			if ev.Err != nil {
				fmt.Fprintf(os.Stderr, "[%s] %v\n", ev.Label, ev.Err)
			} else if res.Config.LogToCLI {
				fmt.Fprintf(os.Stderr, "[%s]\n", ev.Label)
			}
		}
	}()
}
