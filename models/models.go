package models

import (
	"time"
)

// CatalogListing is one snapshot row of a catalog
type CatalogListing struct {
	ID         int               `gorm:"primaryKey;autoIncrement"`
	Catalog    string            `gorm:"type:text;not null;uniqueIndex:idx_catalog_listing"`
	ListingID  string            `gorm:"column:listing_id;type:text;not null;uniqueIndex:idx_catalog_listing"`
	SourceURL  string            `gorm:"column:source_url;type:text"`
	Fields     map[string]string `gorm:"serializer:json;type:jsonb"`
	Latitude   *float64
	Longitude  *float64
	AssetDir   string    `gorm:"type:text"`
	IsActive   bool      `gorm:"not null;index"`
	LastSeenAt time.Time `gorm:"type:timestamp with time zone"`
	Position   int       `gorm:"not null"`
}

// TableName overrides the table name
func (CatalogListing) TableName() string {
	return "catalog_listings"
}
