package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"catalog-sync-worker/domain"
)

const DefaultSettleDelay = 2 * time.Second

// Consumer-side interfaces
type RecordExtractor interface {
	Extract(ctx context.Context, recordURL string) (domain.Record, error)
	ExtractAssetRefs(ctx context.Context, recordURL string) ([]domain.AssetRef, error)
}

type SnapshotStore interface {
	Load(ctx context.Context, catalog domain.Catalog) (domain.Snapshot, error)
	Save(ctx context.Context, catalog domain.Catalog, snapshot domain.Snapshot) error
}

// SessionOpener is implemented by page sources that need a live session
// (a browser) before the first page can be fetched.
type SessionOpener interface {
	Open(ctx context.Context) error
}

type RunStatusRepository interface {
	UpdateRunStatus(ctx context.Context, stats domain.RunStats, status string) error
}

type SQSClient interface {
	SendMessage(ctx context.Context, queueURL string, msg interface{}) error
}

type ListingIndexer interface {
	IndexListings(ctx context.Context, catalog domain.Catalog, entries []domain.SnapshotEntry) error
}

type SyncEngine struct {
	pageSource     PageSource
	extractor      RecordExtractor
	assetFetcher   *AssetFetcher
	snapshotStore  SnapshotStore
	seenMirror     SeenMirror
	statusRepo     RunStatusRepository
	sqsClient      SQSClient
	notifyQueueURL string
	indexer        ListingIndexer

	assetRoot string
	pageCap   int
	pageRetry RetryPolicy
	settle    time.Duration
	now       func() time.Time
	newRunID  func() string
}

// Functional Options Pattern
type SyncOption func(*SyncEngine)

func WithPageSource(p PageSource) SyncOption {
	return func(s *SyncEngine) { s.pageSource = p }
}

func WithExtractor(e RecordExtractor) SyncOption {
	return func(s *SyncEngine) { s.extractor = e }
}

func WithAssetFetcher(f *AssetFetcher) SyncOption {
	return func(s *SyncEngine) { s.assetFetcher = f }
}

func WithSnapshotStore(st SnapshotStore) SyncOption {
	return func(s *SyncEngine) { s.snapshotStore = st }
}

func WithSeenMirror(m SeenMirror) SyncOption {
	return func(s *SyncEngine) { s.seenMirror = m }
}

func WithRunStatusRepository(r RunStatusRepository) SyncOption {
	return func(s *SyncEngine) { s.statusRepo = r }
}

func WithNotifier(c SQSClient, queueURL string) SyncOption {
	return func(s *SyncEngine) {
		s.sqsClient = c
		s.notifyQueueURL = queueURL
	}
}

func WithListingIndexer(i ListingIndexer) SyncOption {
	return func(s *SyncEngine) { s.indexer = i }
}

func WithAssetRoot(dir string) SyncOption {
	return func(s *SyncEngine) { s.assetRoot = dir }
}

func WithPagination(pageCap int, retry RetryPolicy) SyncOption {
	return func(s *SyncEngine) {
		s.pageCap = pageCap
		s.pageRetry = retry
	}
}

func WithSettleDelay(d time.Duration) SyncOption {
	return func(s *SyncEngine) { s.settle = d }
}

func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncEngine) { s.now = now }
}

func NewSyncEngine(opts ...SyncOption) *SyncEngine {
	s := &SyncEngine{
		assetRoot: "images",
		pageCap:   DefaultPageCap,
		pageRetry: NewRetryPolicy(DefaultPageAttempts, DefaultPageRetryDelay),
		settle:    DefaultSettleDelay,
		now:       time.Now,
		newRunID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAll synchronizes catalogs one after another. It stops scheduling new
// catalogs once ctx is cancelled. Only fatal setup failures are returned;
// every other failure is logged and reflected in the stats.
func (s *SyncEngine) RunAll(ctx context.Context, catalogs []domain.Catalog) ([]domain.RunStats, error) {
	if opener, ok := s.pageSource.(SessionOpener); ok {
		if err := opener.Open(ctx); err != nil {
			return nil, fmt.Errorf("%w: open page source session: %v", domain.ErrFatalSetup, err)
		}
	}

	var all []domain.RunStats
	for _, c := range catalogs {
		if ctx.Err() != nil {
			log.Printf("Shutdown requested, skipping remaining catalogs")
			break
		}
		stats, err := s.Run(ctx, c)
		all = append(all, stats)
		if err != nil {
			if errors.Is(err, domain.ErrFatalSetup) {
				return all, err
			}
			log.Printf("Catalog %s finished with error: %v", c.Name, err)
		}
	}
	return all, nil
}

// Run harvests one catalog and persists the reconciled snapshot.
func (s *SyncEngine) Run(ctx context.Context, catalog domain.Catalog) (domain.RunStats, error) {
	stats := domain.RunStats{
		RunID:     s.newRunID(),
		Catalog:   catalog.Name,
		StartedAt: s.now(),
	}
	log.Printf("Syncing catalog %s (run %s): %s", catalog.Name, stats.RunID, catalog.BaseURL)

	previous, err := s.snapshotStore.Load(ctx, catalog)
	if err != nil {
		return stats, fmt.Errorf("%w: load snapshot for %s: %v", domain.ErrFatalSetup, catalog.Name, err)
	}
	known := previous.IDs()
	log.Printf("Loaded %d previously harvested listings for %s", previous.Len(), catalog.Name)

	s.reportStatus(ctx, stats, domain.StatusRunning)

	tracker := NewDedupTracker()
	if s.seenMirror != nil {
		tracker.WithMirror(s.seenMirror, catalog.Name, stats.RunID)
	}
	seenIDs := make(map[string]struct{})
	var fresh []domain.Record
	interrupted := false

	it := NewPageIterator(s.pageSource, catalog, s.pageCap, s.pageRetry, s.settle)
pages:
	for {
		batch, ok := it.Next(ctx)
		if !ok {
			break
		}
		stats.LinksSeen += len(batch.Links)

		for idx, link := range batch.Links {
			id := domain.ListingIDFromURL(link)
			if id == "" || !tracker.Admit(id) {
				continue
			}
			if _, ok := known[id]; ok {
				seenIDs[id] = struct{}{}
				if !catalog.ReharvestKnown {
					stats.RecordsKnown++
					continue
				}
			}
			if s.settle > 0 && !sleepCtx(ctx, s.settle) {
				interrupted = true
				break pages
			}

			rec, assets, err := s.harvest(ctx, catalog, link, id)
			if err != nil {
				stats.ExtractionFailures++
				log.Printf("Error scraping listing %d/%d on page %d (%s): %v", idx+1, len(batch.Links), batch.Number, link, err)
				continue
			}
			stats.AssetsOK += assets.OK
			stats.AssetsFailed += assets.Failed
			seenIDs[rec.ListingID] = struct{}{}
			fresh = append(fresh, rec)
			stats.RecordsExtracted++
			log.Printf("[%d/%d] %s: %s", idx+1, len(batch.Links), rec.ListingID, truncate(rec.Field("Title"), 40))
		}
	}
	log.Printf("Traversal of %s admitted %d distinct listings (%d links)", catalog.Name, tracker.Len(), stats.LinksSeen)
	stats.PagesSucceeded = it.PagesSucceeded()
	stats.StopReason = it.StopReason()
	if interrupted || it.StopReason() == domain.StopInterrupted {
		stats.StopReason = domain.StopInterrupted
	}

	// An interrupted run persists what it harvested but keeps previous liveness flags.
	livenessPages := stats.PagesSucceeded
	if stats.StopReason == domain.StopInterrupted {
		livenessPages = 0
	}
	result, rstats := Reconcile(previous, fresh, seenIDs, livenessPages, s.now())
	stats.NewRecords = rstats.New
	stats.RefreshedRecords = rstats.Refreshed
	stats.DelistedRecords = rstats.Delisted

	if stats.PagesSucceeded == 0 {
		log.Printf("No page was successfully processed for %s; snapshot left unchanged", catalog.Name)
		stats.Duration = s.now().Sub(stats.StartedAt)
		s.reportStatus(ctx, stats, domain.StatusFailed)
		return stats, nil
	}

	saveCtx := context.WithoutCancel(ctx)
	if err := s.snapshotStore.Save(saveCtx, catalog, result); err != nil {
		stats.Duration = s.now().Sub(stats.StartedAt)
		s.reportStatus(saveCtx, stats, domain.StatusFailed)
		return stats, fmt.Errorf("save snapshot for %s: %w", catalog.Name, err)
	}
	stats.SnapshotSaved = true
	stats.Duration = s.now().Sub(stats.StartedAt)
	log.Printf("Catalog %s saved: %d listings (%d new, %d refreshed, %d delisted), %d pages, stop=%s",
		catalog.Name, result.Len(), stats.NewRecords, stats.RefreshedRecords, stats.DelistedRecords, stats.PagesSucceeded, stats.StopReason)

	s.publish(saveCtx, catalog, stats, result)
	return stats, nil
}

// harvest extracts one record and fetches its assets. The asset batch runs
// detached from ctx so a shutdown lets it finish.
func (s *SyncEngine) harvest(ctx context.Context, catalog domain.Catalog, link, id string) (domain.Record, AssetSummary, error) {
	rec, err := s.extractor.Extract(ctx, link)
	if err != nil {
		return domain.Record{}, AssetSummary{}, err
	}
	if rec.ListingID == "" {
		rec.ListingID = id
	}
	if rec.SourceURL == "" {
		rec.SourceURL = link
	}
	fields := copyFields(rec.Fields)
	if fields == nil {
		fields = make(map[string]string)
	}
	fields["Type (Rent/Buy)"] = catalog.ResolveKind()
	fields["Website"] = catalog.BaseURL
	rec.Fields = fields
	rec.AssetDir = domain.NotFound

	var summary AssetSummary
	refs, err := s.extractor.ExtractAssetRefs(ctx, link)
	if err != nil {
		log.Printf("Failed to resolve assets for %s: %v", rec.ListingID, err)
		return rec, summary, nil
	}
	if len(refs) == 0 || s.assetFetcher == nil {
		return rec, summary, nil
	}

	dir := filepath.Join(s.assetRoot, catalog.Name, rec.ListingID)
	results := s.assetFetcher.FetchAll(context.WithoutCancel(ctx), refs, dir)
	summary = Summarize(results)
	for _, r := range results {
		if !r.Success() {
			log.Printf("Asset download skipped/failed: %s -> %s (%v)", r.Ref.URL, r.Reason, r.Err)
		}
	}
	log.Printf("Downloaded %d/%d assets for %s, failures: %d", summary.OK, len(results), rec.ListingID, summary.Failed)
	if summary.AnySucceeded() {
		rec.AssetDir = dir
	}
	return rec, summary, nil
}

func (s *SyncEngine) reportStatus(ctx context.Context, stats domain.RunStats, status string) {
	if s.statusRepo == nil {
		return
	}
	if err := s.statusRepo.UpdateRunStatus(ctx, stats, status); err != nil {
		log.Printf("failed to record run status %s for %s: %v", status, stats.Catalog, err)
	}
}

func (s *SyncEngine) publish(ctx context.Context, catalog domain.Catalog, stats domain.RunStats, result domain.Snapshot) {
	s.reportStatus(ctx, stats, domain.StatusCompleted)

	if s.sqsClient != nil && s.notifyQueueURL != "" {
		msg := domain.CatalogSyncedMessage{
			Type:       domain.MsgTypeCatalogSynced,
			RunID:      stats.RunID,
			Catalog:    catalog.Name,
			New:        stats.NewRecords,
			Refreshed:  stats.RefreshedRecords,
			Delisted:   stats.DelistedRecords,
			Pages:      stats.PagesSucceeded,
			StopReason: string(stats.StopReason),
			FinishedAt: s.now().UTC().Format(time.RFC3339),
		}
		if err := s.sqsClient.SendMessage(ctx, s.notifyQueueURL, msg); err != nil {
			log.Printf("failed to send sync notification for %s: %v", catalog.Name, err)
		}
	}

	if s.indexer != nil {
		if err := s.indexer.IndexListings(ctx, catalog, result.Entries); err != nil {
			log.Printf("failed to index listings for %s: %v", catalog.Name, err)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
