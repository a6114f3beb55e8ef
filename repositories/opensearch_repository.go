package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"catalog-sync-worker/domain"
)

const DefaultListingsIndex = "catalog_listings"

// OpenSearchRepository bulk-indexes a catalog's snapshot for search.
type OpenSearchRepository struct {
	client *opensearch.Client
	index  string
}

func NewOpenSearchRepository(client *opensearch.Client, index string) *OpenSearchRepository {
	if index == "" {
		index = DefaultListingsIndex
	}
	return &OpenSearchRepository{client: client, index: index}
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

func (r *OpenSearchRepository) IndexListings(ctx context.Context, catalog domain.Catalog, entries []domain.SnapshotEntry) error {
	if len(entries) == 0 {
		return nil
	}

	body, err := r.bulkBody(catalog, entries)
	if err != nil {
		return err
	}

	req := opensearchapi.BulkRequest{
		Index:   r.index,
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to execute bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing listings: %s", res.String())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read bulk response: %w", err)
	}
	var parsed bulkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if parsed.Errors {
		return fmt.Errorf("bulk indexing reported item errors for %s", catalog.Name)
	}
	return nil
}

func (r *OpenSearchRepository) bulkBody(catalog domain.Catalog, entries []domain.SnapshotEntry) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range entries {
		meta := map[string]map[string]string{
			"index": {"_id": catalog.Name + ":" + e.ListingID},
		}
		doc := map[string]interface{}{
			"catalog":      catalog.Name,
			"listing_id":   e.ListingID,
			"url":          e.SourceURL,
			"fields":       e.Fields,
			"is_active":    e.IsActive,
			"last_seen_at": e.LastSeenAt.UTC().Format(time.RFC3339),
		}
		if e.Latitude != nil && e.Longitude != nil {
			doc["location"] = map[string]float64{"lat": *e.Latitude, "lon": *e.Longitude}
		}

		for _, line := range []interface{}{meta, doc} {
			encoded, err := json.Marshal(line)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal listing %s: %w", e.ListingID, err)
			}
			buf.Write(encoded)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}
