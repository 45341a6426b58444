package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no schedule was stored for an account.
var ErrNotFound = errors.New("schedule not found")

// Store persists computed schedules. A Store over a nil DB drops writes
// and reports every lookup as not found.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Enabled reports whether the store is backed by a database.
func (s *Store) Enabled() bool { return s != nil && s.db != nil }

// SaveSchedule stores the schedule of account computed at head.
func (s *Store) SaveSchedule(ctx context.Context, account string, head governance.BlockNumber, schedule governance.Schedule) (uint, error) {
	if !s.Enabled() {
		return 0, nil
	}

	claim := schedule.ClaimSchedule(head)
	snap := models.ScheduleSnapshot{
		Account:   account,
		Head:      uint32(head),
		Claimable: claim.TotalClaimable().String(),
		Pending:   claim.TotalPending().String(),
	}
	for i, it := range schedule.Items {
		actions, err := json.Marshal(it.Actions)
		if err != nil {
			return 0, fmt.Errorf("encode actions: %w", err)
		}
		snap.Items = append(snap.Items, models.ScheduleItem{
			Position:  i,
			UnlockAt:  uint32(it.UnlockAt),
			Amount:    it.Amount.String(),
			Actions:   string(actions),
			Claimable: it.UnlockAt <= head,
		})
	}

	// snapshot and items are written in one transaction by the association save
	if err := s.db.WithContext(ctx).Create(&snap).Error; err != nil {
		return 0, fmt.Errorf("save schedule for %s: %w", account, err)
	}
	return snap.ID, nil
}

// LatestSchedule loads the most recently stored schedule of account.
func (s *Store) LatestSchedule(ctx context.Context, account string) (governance.Schedule, governance.BlockNumber, error) {
	if !s.Enabled() {
		return governance.Schedule{}, 0, ErrNotFound
	}

	var snap models.ScheduleSnapshot
	err := s.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("account = ?", account).
		Order("id DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return governance.Schedule{}, 0, ErrNotFound
	}
	if err != nil {
		return governance.Schedule{}, 0, fmt.Errorf("load schedule for %s: %w", account, err)
	}

	schedule := governance.Schedule{Items: make([]governance.ScheduleItem, 0, len(snap.Items))}
	for _, row := range snap.Items {
		amount, err := governance.ParseBalance(row.Amount)
		if err != nil {
			return governance.Schedule{}, 0, fmt.Errorf("schedule item %d: %w", row.ID, err)
		}
		var actions governance.ActionSet
		if err := json.Unmarshal([]byte(row.Actions), &actions); err != nil {
			return governance.Schedule{}, 0, fmt.Errorf("schedule item %d actions: %w", row.ID, err)
		}
		schedule.Items = append(schedule.Items, governance.ScheduleItem{
			Amount:   amount,
			UnlockAt: governance.BlockNumber(row.UnlockAt),
			Actions:  actions,
		})
	}
	return schedule, governance.BlockNumber(snap.Head), nil
}

// Prune keeps the newest keep snapshots of account and deletes the rest.
func (s *Store) Prune(ctx context.Context, account string, keep int) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}

	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.ScheduleSnapshot{}).
		Where("account = ?", account).
		Order("id DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("list old schedules for %s: %w", account, err)
	}
	if keep < 0 {
		keep = 0
	}
	if len(ids) <= keep {
		return 0, nil
	}
	ids = ids[keep:]

	var deleted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_snapshot_id IN ?", ids).Delete(&models.ScheduleItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.ScheduleSnapshot{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("prune schedules for %s: %w", account, err)
	}
	return deleted, nil
}
