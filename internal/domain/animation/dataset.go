package animation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dataset is an uploaded delimited file. Immutable after creation; the raw bytes live in
// object storage under StorageKey and are deduplicated per owner by ContentHash.
type Dataset struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_dataset_owner_hash,priority:1" json:"owner_id"`
	Name        string         `gorm:"column:name;not null;index" json:"name"`
	ContentHash string         `gorm:"column:content_hash;not null;uniqueIndex:idx_dataset_owner_hash,priority:2" json:"content_hash"`
	StorageKey  string         `gorm:"column:storage_key;not null" json:"storage_key"`
	Delimiter   string         `gorm:"column:delimiter;not null" json:"delimiter"`
	RowCount    int            `gorm:"column:row_count;not null" json:"row_count"`
	SizeBytes   int64          `gorm:"column:size_bytes;not null" json:"size_bytes"`
	Columns     datatypes.JSON `gorm:"column:columns;type:jsonb" json:"columns"`
	Samples     datatypes.JSON `gorm:"column:samples;type:jsonb" json:"samples"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Dataset) TableName() string { return "dataset" }

func (d *Dataset) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
