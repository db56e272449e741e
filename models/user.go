package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the per-member aggregate for the engagement engine.
// TotalXP is denormalized from the XP ledger: every change goes through a
// ledger insert plus an atomic increment, never a read-then-write of the
// full value. The reconciliation pass (XPService.ReconcileUser) repairs any
// drift between the two.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	SlackID     string `gorm:"uniqueIndex;not null" json:"slack_id"` // chat-platform identity
	DisplayName string `json:"display_name"`

	TotalXP       int64 `json:"total_xp" gorm:"default:0"`
	CurrentStreak int   `json:"current_streak" gorm:"default:0"`
	LongestStreak int   `json:"longest_streak" gorm:"default:0"`

	// Activity counters (denormalized for badge evaluation)
	SubmissionsCount  int64 `json:"submissions_count" gorm:"default:0"`
	CommentsCount     int64 `json:"comments_count" gorm:"default:0"`
	HelpfulComments   int64 `json:"helpful_comments" gorm:"default:0"`
	ReactionsGiven    int64 `json:"reactions_given" gorm:"default:0"`
	FavoritesReceived int64 `json:"favorites_received" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
