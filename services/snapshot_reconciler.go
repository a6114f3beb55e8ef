package services

import (
	"time"

	"catalog-sync-worker/domain"
)

// ReconcileStats counts what a reconciliation changed.
type ReconcileStats struct {
	New       int
	Refreshed int
	Delisted  int
}

// Reconcile merges a fresh harvest into the previous snapshot.
//
// Records of previous whose id is in seenIDs are marked active and stamped
// with now; the rest are marked inactive. When no page was processed
// successfully the previous entries are kept exactly as they were, so a
// failed run never reads as a mass delisting. Fresh records win on id
// conflicts. Neither input is modified.
func Reconcile(previous domain.Snapshot, fresh []domain.Record, seenIDs map[string]struct{}, pagesSucceeded int, now time.Time) (domain.Snapshot, ReconcileStats) {
	latest := dedupeLastWins(fresh)

	entries := make([]domain.SnapshotEntry, 0, len(previous.Entries)+len(latest))
	index := make(map[string]int, len(previous.Entries)+len(latest))
	wasActive := make(map[string]bool, len(previous.Entries))

	for _, prev := range previous.Entries {
		e := prev
		e.Fields = copyFields(prev.Fields)
		wasActive[e.ListingID] = prev.IsActive
		if pagesSucceeded > 0 {
			if _, ok := seenIDs[e.ListingID]; ok {
				e.IsActive = true
				e.LastSeenAt = now
			} else {
				e.IsActive = false
			}
		}
		if i, ok := index[e.ListingID]; ok {
			entries[i] = e
			continue
		}
		index[e.ListingID] = len(entries)
		entries = append(entries, e)
	}

	for _, r := range latest {
		e := domain.SnapshotEntry{Record: r, IsActive: true, LastSeenAt: now}
		e.Fields = copyFields(r.Fields)
		if i, ok := index[r.ListingID]; ok {
			entries[i] = e
			continue
		}
		index[r.ListingID] = len(entries)
		entries = append(entries, e)
	}

	var stats ReconcileStats
	for _, e := range entries {
		active, known := wasActive[e.ListingID]
		switch {
		case !known:
			stats.New++
		case e.IsActive && e.LastSeenAt.Equal(now):
			stats.Refreshed++
		case active && !e.IsActive:
			stats.Delisted++
		}
	}

	return domain.Snapshot{Entries: entries}, stats
}

// dedupeLastWins keeps the last occurrence of each ListingID, placed where
// that last occurrence appeared.
func dedupeLastWins(records []domain.Record) []domain.Record {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.ListingID] = i
	}
	out := make([]domain.Record, 0, len(last))
	for i, r := range records {
		if last[r.ListingID] == i {
			out = append(out, r)
		}
	}
	return out
}

func copyFields(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
