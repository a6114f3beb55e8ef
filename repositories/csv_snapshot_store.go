package repositories

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"catalog-sync-worker/domain"
)

const (
	colListingID = "Listing ID"
	colURL       = "URL"
	colLatitude  = "Latitude"
	colLongitude = "Longitude"
	colImages    = "Images"
	colIsActive  = "IsActive"
	colLastSeen  = "Last Seen Date"
)

var reservedColumns = []string{colLatitude, colLongitude, colURL, colImages, colListingID, colIsActive, colLastSeen}

// lastSeenLayouts are accepted on load; the first one is written.
var lastSeenLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02"}

// CSVSnapshotStore keeps one CSV file per catalog under dir.
type CSVSnapshotStore struct {
	dir          string
	fieldColumns []string
}

// NewCSVSnapshotStore writes the given field columns first, in order; any
// other record field follows alphabetically.
func NewCSVSnapshotStore(dir string, fieldColumns []string) *CSVSnapshotStore {
	return &CSVSnapshotStore{dir: dir, fieldColumns: fieldColumns}
}

// Path is keyed by catalog name, so every catalog owns its file.
func (s *CSVSnapshotStore) Path(catalog domain.Catalog) string {
	return filepath.Join(s.dir, catalog.Name+".csv")
}

func (s *CSVSnapshotStore) Load(ctx context.Context, catalog domain.Catalog) (domain.Snapshot, error) {
	path := s.Path(catalog)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No existing data file for %s. Performing full scrape.", catalog.Name)
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to read snapshot header %s: %w", path, err)
	}

	var snap domain.Snapshot
	index := make(map[string]int)
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("failed to read snapshot %s line %d: %w", path, line, err)
		}
		e, err := decodeRow(header, row)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("snapshot %s line %d: %w", path, line, err)
		}
		if e.ListingID == "" {
			continue
		}
		if i, ok := index[e.ListingID]; ok {
			snap.Entries[i] = e
			continue
		}
		index[e.ListingID] = len(snap.Entries)
		snap.Entries = append(snap.Entries, e)
	}
	return snap, nil
}

// Save replaces the catalog's file atomically.
func (s *CSVSnapshotStore) Save(ctx context.Context, catalog domain.Catalog, snapshot domain.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", s.dir, err)
	}
	path := s.Path(catalog)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	header := s.header(snapshot)
	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	for _, e := range snapshot.Entries {
		if err := w.Write(encodeRow(header, e)); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write listing %s: %w", e.ListingID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", path, err)
	}
	log.Printf("%s data saved to %s (%d listings)", catalog.Name, path, snapshot.Len())
	return nil
}

func (s *CSVSnapshotStore) header(snapshot domain.Snapshot) []string {
	reserved := make(map[string]bool, len(reservedColumns))
	for _, c := range reservedColumns {
		reserved[c] = true
	}
	placed := make(map[string]bool)
	var header []string
	for _, c := range s.fieldColumns {
		if !reserved[c] && !placed[c] {
			header = append(header, c)
			placed[c] = true
		}
	}
	var extra []string
	for _, e := range snapshot.Entries {
		for k := range e.Fields {
			if !reserved[k] && !placed[k] {
				extra = append(extra, k)
				placed[k] = true
			}
		}
	}
	sort.Strings(extra)
	header = append(header, extra...)
	return append(header, reservedColumns...)
}

func encodeRow(header []string, e domain.SnapshotEntry) []string {
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case colListingID:
			row[i] = e.ListingID
		case colURL:
			row[i] = e.SourceURL
		case colLatitude:
			row[i] = formatCoordinate(e.Latitude)
		case colLongitude:
			row[i] = formatCoordinate(e.Longitude)
		case colImages:
			row[i] = e.AssetDir
		case colIsActive:
			row[i] = strconv.FormatBool(e.IsActive)
		case colLastSeen:
			if !e.LastSeenAt.IsZero() {
				row[i] = e.LastSeenAt.Format(lastSeenLayouts[0])
			}
		default:
			row[i] = e.Field(col)
		}
	}
	return row
}

func decodeRow(header, row []string) (domain.SnapshotEntry, error) {
	e := domain.SnapshotEntry{Record: domain.Record{Fields: make(map[string]string)}}
	for i, col := range header {
		if i >= len(row) {
			break
		}
		v := row[i]
		switch col {
		case colListingID:
			e.ListingID = strings.TrimSpace(v)
		case colURL:
			e.SourceURL = v
		case colLatitude:
			e.Latitude = parseCoordinate(v)
		case colLongitude:
			e.Longitude = parseCoordinate(v)
		case colImages:
			e.AssetDir = v
		case colIsActive:
			e.IsActive = strings.EqualFold(strings.TrimSpace(v), "true")
		case colLastSeen:
			t, err := parseLastSeen(v)
			if err != nil {
				return e, err
			}
			e.LastSeenAt = t
		default:
			e.Fields[col] = v
		}
	}
	return e, nil
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return domain.NotFound
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseCoordinate(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseLastSeen(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range lastSeenLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable %s %q", colLastSeen, v)
}
