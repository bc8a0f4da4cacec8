package models

import "time"

// KVEntry is one persisted JSON value of a device's state, keyed by scope and key.
type KVEntry struct {
	Scope     string    `gorm:"primaryKey;type:text"`
	Key       string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
