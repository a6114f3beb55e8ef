package domain

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Catalog is one source query scope with its own pagination and snapshot.
type Catalog struct {
	Name         string   `yaml:"name"`
	Source       string   `yaml:"source"`
	Kind         string   `yaml:"kind"`
	BaseURL      string   `yaml:"base_url"`
	PageParam    string   `yaml:"page_param"`
	LinkPatterns []string `yaml:"link_patterns"`
	// ResultContainer is an attr=value pair locating the result list, e.g.
	// data-test=result-list-container. Empty means the whole document.
	ResultContainer  string   `yaml:"result_container"`
	NoResultsPhrases []string `yaml:"no_results_phrases"`
	ReharvestKnown   bool     `yaml:"reharvest_known"`
}

// PageURL returns the catalog query pointed at the given page number.
func (c Catalog) PageURL(page int) string {
	u, err := url.Parse(c.BaseURL)
	if err != nil || c.PageParam == "" {
		return c.BaseURL
	}
	q := u.Query()
	q.Set(c.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// ResolveKind derives Rent/Buy from the base query when Kind is not set.
func (c Catalog) ResolveKind() string {
	if c.Kind != "" {
		return c.Kind
	}
	if strings.Contains(c.BaseURL, "/rent/") {
		return KindRent
	}
	return KindBuy
}

// Record is one catalog entry's extracted field set.
type Record struct {
	ListingID string
	SourceURL string
	Fields    map[string]string
	Latitude  *float64
	Longitude *float64
	AssetDir  string
}

// Field returns the named field or the NotFound sentinel.
func (r Record) Field(name string) string {
	if v, ok := r.Fields[name]; ok && v != "" {
		return v
	}
	return NotFound
}

// SnapshotEntry is a Record augmented with liveness metadata.
type SnapshotEntry struct {
	Record
	IsActive   bool
	LastSeenAt time.Time
}

// Snapshot is the persisted table of every record ever seen for a Catalog.
// ListingID is unique within Entries.
type Snapshot struct {
	Entries []SnapshotEntry
}

func (s Snapshot) Len() int { return len(s.Entries) }

// IDs returns the set of listing ids present in the snapshot.
func (s Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		ids[e.ListingID] = struct{}{}
	}
	return ids
}

// AssetRef is one binary resource belonging to a Record.
type AssetRef struct {
	URL     string
	Ordinal int
}

// AssetFetchResult is the outcome of fetching one AssetRef.
type AssetFetchResult struct {
	Ref      AssetRef
	Path     string
	Reason   FailureReason
	Attempts int
	Err      error
}

func (r AssetFetchResult) Success() bool { return r.Reason == "" && r.Path != "" }

// Page is what a Page Source returns for one result page.
type Page struct {
	RecordLinks []string
	RawText     string
}

// PageBatch is a page's worth of new record links.
type PageBatch struct {
	Number int
	Links  []string
}

// RunStats summarizes one catalog run.
type RunStats struct {
	RunID              string
	Catalog            string
	PagesSucceeded     int
	LinksSeen          int
	RecordsExtracted   int
	RecordsKnown       int
	ExtractionFailures int
	AssetsOK           int
	AssetsFailed       int
	StopReason         StopReason
	NewRecords         int
	RefreshedRecords   int
	DelistedRecords    int
	SnapshotSaved      bool
	StartedAt          time.Time
	Duration           time.Duration
}

// CatalogSyncedMessage is published once a catalog run has been persisted.
type CatalogSyncedMessage struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	Catalog    string `json:"catalog"`
	New        int    `json:"new"`
	Refreshed  int    `json:"refreshed"`
	Delisted   int    `json:"delisted"`
	Pages      int    `json:"pages"`
	StopReason string `json:"stop_reason"`
	FinishedAt string `json:"finished_at"`
}

// ListingIDFromURL returns the last non-empty path segment of a record URL.
func ListingIDFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}
