// Package enginesync implements the Sync Engine: orchestrates one run of
// fetch remote state -> diff -> write (§4.3), with bounded concurrency on
// the asset-add phase, per-asset retry, metadata rate limiting, and
// lifecycle event emission.
package enginesync

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivoronin/icloudmirror/internal/album"
	"github.com/ivoronin/icloudmirror/internal/asset"
	"github.com/ivoronin/icloudmirror/internal/differ"
	"github.com/ivoronin/icloudmirror/internal/progress"
	"github.com/ivoronin/icloudmirror/internal/remote"
	"github.com/ivoronin/icloudmirror/internal/resources"
	"github.com/ivoronin/icloudmirror/internal/store"
)

// Engine runs one sync against a single zone. It holds no state across
// runs; Run can be called again with the same Engine once it returns.
type Engine struct {
	Store     *store.Store
	Client    remote.Client
	Resources *resources.Resources

	// ShowProgress enables the internal/progress spinner during the
	// write phase (teacher's schollz/progressbar wrapper).
	ShowProgress bool
}

// New constructs an Engine wired to s, client, and res.
func New(s *store.Store, client remote.Client, res *resources.Resources, showProgress bool) *Engine {
	return &Engine{Store: s, Client: client, Resources: res, ShowProgress: showProgress}
}

// Run executes one fetch -> diff -> write cycle against zone (§4.3). In
// dry-run mode (Resources.Config.DryRun) it stops after computing and
// describing the plan, issuing no Store writes (§6 supplemented
// features: "Differ-output-only, no Store writes").
//
// Every event Run publishes carries the same RunID, a fresh UUID minted
// for this call, so a log consumer watching the shared bus can tell two
// concurrent or overlapping runs apart.
func (e *Engine) Run(ctx context.Context, zone resources.Zone) error {
	runID := uuid.NewString()

	if err := e.Store.EnsureLayout(); err != nil {
		return e.fail(runID, "EnsureLayout", err)
	}

	remoteAlbums, remoteAssets, err := e.fetch(ctx, zone, runID)
	if err != nil {
		return e.fail(runID, "Fetch", err)
	}

	localAlbums, err := e.Store.LoadAlbums(e.warnFunc(runID))
	if err != nil {
		return e.fail(runID, "LoadAlbums", err)
	}
	localAssets, err := e.Store.LoadAssets(e.warnFunc(runID))
	if err != nil {
		return e.fail(runID, "LoadAssets", err)
	}
	e.verifyLocalAssets(localAssets, remoteAssets, runID)

	stashedAlbums, err := e.Store.LoadStashedAlbums(e.warnFunc(runID))
	if err != nil {
		return e.fail(runID, "LoadStashedAlbums", err)
	}

	plan := differ.Diff(remoteAlbums, remoteAssets, localAlbums, localAssets, stashedAlbums)
	e.Resources.Events.Publish(resources.Event{Label: resources.EventDiff, RunID: runID})

	stats := planStatsOf(plan, remoteAssets)
	bar := progress.New(e.ShowProgress, -1)
	bar.Describe(stats)

	if e.Resources.Config.DryRun {
		bar.Finish(stats)
		e.Resources.Events.Publish(resources.Event{Label: resources.EventDone, RunID: runID})
		return nil
	}

	assetAddOps, rest := splitAssetAdds(plan)

	e.Resources.Events.Publish(resources.Event{Label: resources.EventWrite, RunID: runID})
	if err := e.runAssetAdds(ctx, zone, assetAddOps, localAssets, bar, runID); err != nil {
		return e.fail(runID, "Write", err)
	}

	e.Resources.Events.Publish(resources.Event{Label: resources.EventApplyStructure, RunID: runID})
	if err := e.applyStructure(rest, localAssets, runID); err != nil {
		return e.fail(runID, "ApplyStructure", err)
	}

	if err := e.Store.CleanArchivedOrphans(); err != nil {
		return e.fail(runID, "CleanArchivedOrphans", err)
	}

	bar.Finish(stats)
	e.Resources.Events.Publish(resources.Event{Label: resources.EventDone, RunID: runID})
	return nil
}

// fetch lists remote albums and assets, paced by the metadata rate
// limiter (§4.3), and maps them into the Differ's own types.
func (e *Engine) fetch(ctx context.Context, zone resources.Zone, runID string) (map[string]album.Album, map[string]asset.Asset, error) {
	limiter := e.Resources.MetadataLimiter()

	if err := limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}
	albumListings, err := e.Client.ListAlbums(ctx, zone)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch albums: %w", err)
	}

	if err := limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}
	assetListings, err := e.Client.ListAssets(ctx, zone)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch assets: %w", err)
	}

	albums := make(map[string]album.Album, len(albumListings))
	for _, l := range albumListings {
		albums[l.UUID] = mapAlbum(l)
	}
	assets := make(map[string]asset.Asset, len(assetListings))
	for _, l := range assetListings {
		assets[l.UUID] = mapAsset(l)
	}

	e.Resources.Events.Publish(resources.Event{Label: resources.EventFetch, RunID: runID})
	return albums, assets, nil
}

// verifyLocalAssets re-checks every locally recorded asset that also
// exists remotely against its remote-provided content hash (§8: an
// asset on disk with the right size but a wrong hash must be
// re-downloaded). A verification miss or a read failure drops the
// entry from localAssets, so differ.Diff's needsRedownload sees it as
// absent and schedules a fresh AssetAdd; it is not treated as a
// run-aborting error, since a bad local file never threatens a
// structural invariant.
func (e *Engine) verifyLocalAssets(localAssets, remoteAssets map[string]asset.Asset, runID string) {
	for uuid, local := range localAssets {
		remoteAsset, ok := remoteAssets[uuid]
		if !ok || remoteAsset.SizeBytes != local.SizeBytes {
			continue
		}
		verified, err := e.Store.VerifyAsset(remoteAsset)
		if err != nil {
			e.warn(runID, "verify asset "+uuid, err)
			delete(localAssets, uuid)
			continue
		}
		if !verified {
			delete(localAssets, uuid)
		}
	}
}

func mapAlbum(l remote.AlbumListing) album.Album {
	kind := album.KindAlbum
	if l.Kind == "folder" {
		kind = album.KindFolder
	}
	return album.Album{
		UUID:        l.UUID,
		Kind:        kind,
		DisplayName: l.DisplayName,
		ParentUUID:  l.ParentUUID,
		Assets:      l.Assets,
	}
}

func mapAsset(l remote.AssetListing) asset.Asset {
	return asset.Asset{
		UUID:         l.UUID,
		FilenameStem: l.FilenameStem,
		Extension:    l.Extension,
		SizeBytes:    l.SizeBytes,
		ContentHash:  hex.EncodeToString(l.ContentHash),
		ModifiedTime: time.Unix(l.ModifiedTime, 0).UTC(),
		Kind:         l.Kind,
	}
}

// splitAssetAdds separates the leading OpAssetAdd run differ.Diff always
// produces (ordering rule 1) from the rest of the plan, preserving the
// rest's relative order.
func splitAssetAdds(plan []differ.Operation) (assetAdds, rest []differ.Operation) {
	for _, op := range plan {
		if op.Kind == differ.OpAssetAdd {
			assetAdds = append(assetAdds, op)
		} else {
			rest = append(rest, op)
		}
	}
	return assetAdds, rest
}

func planStatsOf(plan []differ.Operation, remoteAssets map[string]asset.Asset) progress.PlanStats {
	var s progress.PlanStats
	for _, op := range plan {
		switch op.Kind {
		case differ.OpAssetAdd:
			s.AssetAdds++
			s.BytesToFetch += remoteAssets[op.Asset.UUID].SizeBytes
		case differ.OpAssetRemove:
			s.AssetRemoves++
		default:
			s.AlbumOps++
		}
	}
	return s
}

// runAssetAdds downloads every scheduled asset with bounded concurrency
// (Config.DownloadThreads) via errgroup's limited worker pool — a
// per-asset terminal failure is recorded via RECORD_COMPLETED and does
// not cancel its siblings (§4.3: "a terminal failure does not abort the
// run"), so errgroup's group itself never returns an error here; it is
// used purely for the bounded fan-out and Wait barrier.
func (e *Engine) runAssetAdds(
	ctx context.Context,
	zone resources.Zone,
	ops []differ.Operation,
	localAssets map[string]asset.Asset,
	bar *progress.Bar,
	runID string,
) error {
	if len(ops) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.Resources.Config.DownloadThreads))

	var mu sync.Mutex
	var done int

	for _, op := range ops {
		op := op
		g.Go(func() error {
			downloadErr := e.downloadWithRetry(gctx, zone, op.Asset)

			mu.Lock()
			if downloadErr == nil {
				localAssets[op.Asset.UUID] = op.Asset
			}
			done++
			bar.Set(uint64(done))
			mu.Unlock()

			e.Resources.Events.Publish(resources.Event{
				Label:     resources.EventRecordCompleted,
				RunID:     runID,
				AssetUUID: op.Asset.UUID,
				Err:       downloadErr,
			})
			return nil
		})
	}
	return g.Wait()
}

// downloadWithRetry opens a stream for a and writes it to the Store,
// retrying transient failures up to Config.MaxRetries with exponential
// backoff (§4.3, §7 DownloadFailed/VerificationFailed). A context
// cancellation aborts the retry loop immediately rather than continuing
// to back off.
func (e *Engine) downloadWithRetry(ctx context.Context, zone resources.Zone, a asset.Asset) error {
	e.Store.Semaphore.Acquire()
	defer e.Store.Semaphore.Release()

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(0, e.Resources.Config.MaxRetries))),
		ctx,
	)

	return backoff.Retry(func() error {
		rc, err := e.Client.Download(ctx, zone, a.UUID)
		if err != nil {
			return fmt.Errorf("download %s: %w", a.UUID, err)
		}
		defer rc.Close()

		if err := e.Store.WriteAsset(a, rc); err != nil {
			return fmt.Errorf("write %s: %w", a.UUID, err)
		}
		return nil
	}, bo)
}

// applyStructure executes every non-asset-add operation in plan order,
// sequentially (§5: the album phase stays serial; no concurrency
// primitive is used here).
func (e *Engine) applyStructure(ops []differ.Operation, localAssets map[string]asset.Asset, runID string) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case differ.OpAlbumAdd:
			err = e.Store.WriteAlbum(op.Album, localAssets, e.warnFunc(runID))
		case differ.OpAlbumRename:
			err = e.Store.RenameAlbum(op.OldAlbum, op.Album)
		case differ.OpAlbumMove:
			err = e.Store.MoveAlbum(op.OldAlbum, op.Album)
		case differ.OpAlbumArchiveStash:
			err = e.Store.StashArchivedAlbum(op.Album)
		case differ.OpAlbumArchiveRetrieve:
			err = e.Store.RetrieveStashedAlbum(op.Album)
		case differ.OpAlbumRemove:
			err = e.Store.DeleteAlbum(op.Album)
		case differ.OpAssetRemove:
			err = e.Store.DeleteAsset(op.Asset)
			if err == nil {
				e.Resources.Events.Publish(resources.Event{
					Label: resources.EventRecordCompleted, RunID: runID, AssetUUID: op.Asset.UUID,
				})
			}
		default:
			err = fmt.Errorf("apply structure: unexpected op %s in structure phase", op)
		}
		if err != nil && isInvariantViolation(err) {
			return fmt.Errorf("apply structure %s: %w", op, err)
		}
		if err != nil {
			e.warn(runID, op.String(), err)
		}
	}
	return nil
}

// isInvariantViolation reports whether err threatens a structural
// invariant and must halt the run (§7: "Invariant-threatening errors
// halt the run with ERROR"), as opposed to a per-item failure that the
// run continues past.
func isInvariantViolation(err error) bool {
	return errors.Is(err, store.ErrAmbiguousTree) || errors.Is(err, store.ErrNotEmpty)
}

// warn publishes a non-fatal ERROR event; it is the callback passed to
// Store read/write operations that tolerate per-item failures.
func (e *Engine) warn(runID, where string, err error) {
	e.Resources.Events.Publish(resources.Event{
		Label: resources.EventError,
		RunID: runID,
		Err:   &resources.EventError{Code: "Warning", Message: where, Cause: err},
	})
}

// warnFunc binds runID into the (path, error) callback shape the Store
// package's read/write operations call on a per-item failure.
func (e *Engine) warnFunc(runID string) func(path string, err error) {
	return func(path string, err error) { e.warn(runID, path, err) }
}

// fail publishes the terminal ERROR event for phase and returns err
// wrapped for the caller.
func (e *Engine) fail(runID, phase string, err error) error {
	e.Resources.Events.Publish(resources.Event{
		Label: resources.EventError,
		RunID: runID,
		Err:   &resources.EventError{Code: phase, Message: "run aborted", Cause: err},
	})
	return fmt.Errorf("%s: %w", phase, err)
}
