package models

import "time"

// ClientEntry is one persisted client-local value, such as a guest cart or a
// bearer token, keyed by its fully scoped storage key.
type ClientEntry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:255"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (ClientEntry) TableName() string {
	return "client_entries"
}
