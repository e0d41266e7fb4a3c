// Package model defines the data structures used throughout the application.
//
// The `json:"..."` tags are the wire format of the HTTP API; the `db:"..."`
// tags document the matching SQLite column names.
package model

import (
	"math"
	"time"
)

// DefaultRemindBeforeMinutes is the lead time a block gets when the client
// does not pick one.
const DefaultRemindBeforeMinutes = 10

// Block is a user-defined, time-boxed study session.
//
// REMINDER STATE:
// ReminderSentAt is nil while the reminder is PENDING. The dispatch job sets
// it exactly once (PENDING -> SENT); nothing in the application clears it,
// including edits to the block itself.
type Block struct {
	ID                  string     `json:"id"                  db:"id"`
	UserID              string     `json:"userId"              db:"user_id"`
	Title               string     `json:"title"               db:"title"`
	Description         string     `json:"description,omitempty" db:"description"`
	StartTime           time.Time  `json:"startTime"           db:"start_time"`
	EndTime             time.Time  `json:"endTime"             db:"end_time"`
	RemindBeforeMinutes int        `json:"remindBeforeMinutes" db:"remind_before_minutes"`
	ReminderSentAt      *time.Time `json:"reminderSentAt"      db:"reminder_sent_at"`
	CreatedAt           time.Time  `json:"createdAt"           db:"created_at"`
	UpdatedAt           time.Time  `json:"updatedAt"           db:"updated_at"`
}

// DurationMinutes is end minus start, rounded to the nearest minute.
func (b *Block) DurationMinutes() int {
	return int(math.Round(b.EndTime.Sub(b.StartTime).Minutes()))
}

// ReminderSent reports whether the block has left the PENDING state.
func (b *Block) ReminderSent() bool {
	return b.ReminderSentAt != nil
}

// Status classifies the block relative to now. Bounds are inclusive on both
// ends for "active", matching the dashboard filters.
func (b *Block) Status(now time.Time) BlockStatus {
	switch {
	case now.Before(b.StartTime):
		return StatusUpcoming
	case now.After(b.EndTime):
		return StatusCompleted
	default:
		return StatusActive
	}
}

type BlockStatus string

const (
	StatusActive    BlockStatus = "active"
	StatusUpcoming  BlockStatus = "upcoming"
	StatusCompleted BlockStatus = "completed"
)

// BlockFilter selects a subset of a user's blocks for listing.
type BlockFilter string

const (
	FilterAll       BlockFilter = "all"
	FilterActive    BlockFilter = "active"
	FilterUpcoming  BlockFilter = "upcoming"
	FilterCompleted BlockFilter = "completed"
)

// ParseBlockFilter maps a query-string value to a filter. Empty means all.
func ParseBlockFilter(s string) (BlockFilter, bool) {
	switch BlockFilter(s) {
	case "", FilterAll:
		return FilterAll, true
	case FilterActive, FilterUpcoming, FilterCompleted:
		return BlockFilter(s), true
	default:
		return "", false
	}
}

// Matches applies the filter to a single block in memory. The SQLite
// repository expresses the same predicates in SQL.
func (f BlockFilter) Matches(b *Block, now time.Time) bool {
	switch f {
	case FilterActive:
		return b.Status(now) == StatusActive
	case FilterUpcoming:
		return b.Status(now) == StatusUpcoming
	case FilterCompleted:
		return b.Status(now) == StatusCompleted
	default:
		return true
	}
}

// BlockStats are the dashboard counters for one user.
type BlockStats struct {
	Active    int `json:"active"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}
