// Package models defines the database models for computed unlock schedules.
package models

import "time"

// ScheduleSnapshot is one computed unlock schedule of an account at a chain head.
type ScheduleSnapshot struct {
	ID        uint           `gorm:"primaryKey"`
	Account   string         `gorm:"size:128;not null;index:ix_account_head"`
	Head      uint32         `gorm:"index:ix_account_head"`
	Claimable string         `gorm:"size:80"` // base units, decimal string
	Pending   string         `gorm:"size:80"`
	Items     []ScheduleItem `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time
}
