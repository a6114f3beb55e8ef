package services

import (
	"context"
	"log"
)

// SeenMirror receives every admitted id. Implementations must be best-effort.
type SeenMirror interface {
	AddSeen(ctx context.Context, catalog, runID, id string) error
}

// DedupTracker is the set of identifiers already processed in one catalog run.
// It is not safe for concurrent use; traversal is sequential.
type DedupTracker struct {
	seen    map[string]struct{}
	mirror  SeenMirror
	catalog string
	runID   string
}

func NewDedupTracker() *DedupTracker {
	return &DedupTracker{seen: make(map[string]struct{})}
}

// WithMirror attaches a SeenMirror scoped to one catalog run.
func (d *DedupTracker) WithMirror(m SeenMirror, catalog, runID string) *DedupTracker {
	d.mirror = m
	d.catalog = catalog
	d.runID = runID
	return d
}

// Admit records id and returns true if it was unseen, false otherwise.
func (d *DedupTracker) Admit(id string) bool {
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	if d.mirror != nil {
		if err := d.mirror.AddSeen(context.Background(), d.catalog, d.runID, id); err != nil {
			log.Printf("failed to mirror seen id %s for %s: %v", id, d.catalog, err)
		}
	}
	return true
}

// Len counts the ids admitted so far.
func (d *DedupTracker) Len() int { return len(d.seen) }
