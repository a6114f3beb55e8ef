package repositories

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"catalog-sync-worker/domain"
	"catalog-sync-worker/models"
)

// PostgresSnapshotStore keeps every catalog's snapshot in one table.
type PostgresSnapshotStore struct {
	db        *gorm.DB
	batchSize int
}

func NewPostgresSnapshotStore(db *gorm.DB, batchSize int) *PostgresSnapshotStore {
	if batchSize <= 0 {
		batchSize = 100 // Default
	}
	return &PostgresSnapshotStore{db: db, batchSize: batchSize}
}

func (r *PostgresSnapshotStore) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.CatalogListing{})
}

func (r *PostgresSnapshotStore) Load(ctx context.Context, catalog domain.Catalog) (domain.Snapshot, error) {
	var rows []models.CatalogListing
	err := r.db.WithContext(ctx).
		Where("catalog = ?", catalog.Name).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to load catalog listings for %s: %w", catalog.Name, err)
	}

	snap := domain.Snapshot{Entries: make([]domain.SnapshotEntry, 0, len(rows))}
	for _, row := range rows {
		snap.Entries = append(snap.Entries, domain.SnapshotEntry{
			Record: domain.Record{
				ListingID: row.ListingID,
				SourceURL: row.SourceURL,
				Fields:    row.Fields,
				Latitude:  row.Latitude,
				Longitude: row.Longitude,
				AssetDir:  row.AssetDir,
			},
			IsActive:   row.IsActive,
			LastSeenAt: row.LastSeenAt,
		})
	}
	return snap, nil
}

// Save replaces the catalog's rows inside one transaction.
func (r *PostgresSnapshotStore) Save(ctx context.Context, catalog domain.Catalog, snapshot domain.Snapshot) error {
	rows := make([]models.CatalogListing, 0, snapshot.Len())
	for i, e := range snapshot.Entries {
		rows = append(rows, models.CatalogListing{
			Catalog:    catalog.Name,
			ListingID:  e.ListingID,
			SourceURL:  e.SourceURL,
			Fields:     e.Fields,
			Latitude:   e.Latitude,
			Longitude:  e.Longitude,
			AssetDir:   e.AssetDir,
			IsActive:   e.IsActive,
			LastSeenAt: e.LastSeenAt,
			Position:   i,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("catalog = ?", catalog.Name).Delete(&models.CatalogListing{}).Error; err != nil {
			return fmt.Errorf("failed to clear catalog listings: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, r.batchSize).Error; err != nil {
			return fmt.Errorf("failed to insert catalog listings: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Printf("Error saving snapshot for %s: %v", catalog.Name, err)
		return err
	}
	return nil
}
