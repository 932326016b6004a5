// Package models contains the persisted entities of the application
package models

import "time"

// DefaultCounterName is the key of the singleton counter row.
const DefaultCounterName = "main"

// Counter is the single persisted integer tracked by the service.
// Name carries a unique index so only one logical counter row can exist;
// rows inserted without a name fall back to DefaultCounterName.
type Counter struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64;not null;default:'main';uniqueIndex:uk_counters_name" json:"-"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Counter
func (Counter) TableName() string { return "counters" }
