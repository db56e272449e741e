package models

import (
	"time"
)

// Season status values. Exactly one season may be active at a time.
const (
	SeasonStatusActive = "active"
	SeasonStatusPaused = "paused"
	SeasonStatusEnded  = "ended"
)

// Season is a fixed competitive window. Ending a season applies proportional
// decay to every member's total and immediately opens the next season.
type Season struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Number      int       `gorm:"uniqueIndex;not null" json:"number"`
	StartsAt    time.Time `gorm:"not null" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null" json:"ends_at"`
	Status      string    `gorm:"index;default:'active'" json:"status"`
	DecayFactor float64   `json:"decay_factor"` // fraction of TotalXP removed at season end, in [0,1]
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RankingEntry is one row of a season leaderboard, ordered by season-scoped
// XP descending with ties broken by earliest account creation.
type RankingEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	SeasonXP    int64  `json:"season_xp"`
}

// TransitionSummary reports what a season rollover actually did.
type TransitionSummary struct {
	EndedSeasonID string `json:"ended_season_id"`
	NextSeasonID  string `json:"next_season_id"`
	UsersDecayed  int    `json:"users_decayed"`
	TotalDecayed  int64  `json:"total_decayed"`
}
