package model

import "time"

// SyncMeta tracks per-merchant watermarks for incremental catalog refresh.
type SyncMeta struct {
	MerchantID      string `gorm:"type:text;primaryKey"`
	LastProductSync *time.Time
	UpdatedAt       time.Time
}

func (SyncMeta) TableName() string { return "sync_meta" }
