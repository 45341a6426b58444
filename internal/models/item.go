package models

import "time"

// ScheduleItem stores a single unlock of a ScheduleSnapshot
// Actions holds the JSON encoded claim actions
type ScheduleItem struct {
	ID                 uint   `gorm:"primaryKey"`
	ScheduleSnapshotID uint   `gorm:"index;not null"`
	Position           int    `gorm:"not null"`
	UnlockAt           uint32 `gorm:"index"`
	Amount             string `gorm:"size:80"`
	Actions            string `gorm:"type:text"`
	Claimable          bool   `gorm:"index"`
	CreatedAt          time.Time
}
