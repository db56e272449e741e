package models

import (
	"time"
)

// Engagement event types scored by the XP calculator.
const (
	EventSubmissionBase   = "submission_base"
	EventCommentBase      = "comment_base"
	EventReactionGiven    = "reaction_given"
	EventReactionReceived = "reaction_received"
	EventRemixImprovement = "remix_improvement"
	EventFirstSubmission  = "first_submission"
	EventWeeklyChallenge  = "weekly_challenge"
	EventClarityBonus     = "clarity_bonus"
	EventLibraryFavorite  = "library_favorite"
	EventStreakBonus      = "streak_bonus"
	EventBadgeBonus       = "badge_bonus"
	EventSeasonDecay      = "season_decay"
	EventSeasonReward     = "season_reward"
)

// BaseXPTable maps an event type to its base point value. Events with a zero
// base are only ever awarded with an explicit override (streak/badge bonuses,
// season decay and rewards).
var BaseXPTable = map[string]int64{
	EventSubmissionBase:   10,
	EventCommentBase:      5,
	EventReactionGiven:    1,
	EventReactionReceived: 2,
	EventRemixImprovement: 8,
	EventFirstSubmission:  15,
	EventWeeklyChallenge:  20,
	EventClarityBonus:     0,
	EventLibraryFavorite:  2,
	EventStreakBonus:      0,
	EventBadgeBonus:       0,
	EventSeasonDecay:      0,
	EventSeasonReward:     0,
}

// InternalEventTypes are awarded only by the engine itself, always with an
// explicit total override. The public award surface rejects them: a caller
// minting its own season_reward entry would trip the reward idempotency guard
// and block the user's real placement payout.
var InternalEventTypes = map[string]bool{
	EventStreakBonus:  true,
	EventBadgeBonus:   true,
	EventSeasonDecay:  true,
	EventSeasonReward: true,
}

// XPLedgerEntry is the append-only record of one scoring event. Entries are
// never updated or deleted; the sum of a user's entries is the source of
// truth for their TotalXP.
type XPLedgerEntry struct {
	ID           string             `gorm:"primaryKey" json:"id"`
	UserID       string             `gorm:"index;not null" json:"user_id"`
	EventType    string             `gorm:"index;not null" json:"event_type"`
	Value        int64              `json:"value"` // signed; decay entries are negative
	SubmissionID *string                `json:"submission_id,omitempty"`
	SeasonID     *string                `gorm:"index" json:"season_id,omitempty"`
	Breakdown    map[string]interface{} `gorm:"serializer:json" json:"breakdown,omitempty"`
	CreatedAt    time.Time              `gorm:"autoCreateTime;index" json:"created_at"`
}

// XPResult is the computed outcome of one award, returned to the caller with
// the full component breakdown.
type XPResult struct {
	BaseXP     int64              `json:"base_xp"`
	BonusXP    int64              `json:"bonus_xp"`
	PenaltyXP  int64              `json:"penalty_xp"`
	TotalXP    int64              `json:"total_xp"`
	Multiplier float64            `json:"multiplier"`
	Breakdown  map[string]float64 `json:"breakdown"`
	EntryID    string             `json:"entry_id"`
}

// QualityMetrics are the pre-computed scores from the text-analysis
// collaborator, normalized to a 0-10 scale by the caller.
type QualityMetrics struct {
	Clarity     float64 `json:"clarity"`
	Helpfulness float64 `json:"helpfulness"`
	Originality float64 `json:"originality"`
}
