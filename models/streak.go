package models

import (
	"time"
)

// Streak status values derived from the activity ledger.
const (
	StreakStatusNew    = "new"
	StreakStatusActive = "active"
	StreakStatusAtRisk = "at_risk"
	StreakStatusBroken = "broken"
)

// Activity kinds recorded for streak purposes.
const (
	ActivitySubmission = "submission"
	ActivityComment    = "comment"
	ActivityReaction   = "reaction"
)

// StreakActivity is one row per (user, calendar day, kind). The composite
// unique index makes repeat inserts for the same day idempotent no-ops.
type StreakActivity struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"uniqueIndex:idx_streak_user_day_kind;not null" json:"user_id"`
	ActivityDate time.Time `gorm:"uniqueIndex:idx_streak_user_day_kind;not null" json:"activity_date"` // UTC midnight
	Kind         string    `gorm:"uniqueIndex:idx_streak_user_day_kind;not null" json:"kind"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// StreakDay is the per-(user, day) guard row. Winning this insert marks the
// first qualifying activity of the calendar day; the streak recompute and the
// threshold bonus are gated on it, so two concurrent activities of different
// kinds on the same day cannot double-pay a bonus.
type StreakDay struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"uniqueIndex:idx_streak_user_day;not null" json:"user_id"`
	ActivityDate time.Time `gorm:"uniqueIndex:idx_streak_user_day;not null" json:"activity_date"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// StreakData is the derived streak state for a user.
type StreakData struct {
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	Status        string `json:"status"`
	DaysUntilRisk int    `json:"days_until_risk"`
}

// Streak bonus schedule: the highest threshold met on a given day is the one
// applied, not cumulative.
var StreakBonusSchedule = []struct {
	Days  int
	Bonus int64
}{
	{30, 50},
	{14, 25},
	{7, 15},
	{3, 5},
}
