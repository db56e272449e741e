package models

import (
	"time"
)

// Badge criteria types — a closed set dispatched by BadgeService, not a class
// hierarchy. "special" badges are never matched by the automatic pass; they
// are granted directly (season placements, admin grants) unless they carry a
// named SpecialCondition the evaluator knows.
const (
	CriteriaXPTotal          = "xp_total"
	CriteriaSubmissionsCount = "submissions_count"
	CriteriaStreakDays       = "streak_days"
	CriteriaQualityAverage   = "quality_average"
	CriteriaLibraryFavorites = "library_favorites"
	CriteriaCommentsHelpful  = "comments_helpful"
	CriteriaSpecial          = "special"
)

// Named special conditions the automatic pass can still evaluate.
const (
	SpecialFirst100Members = "first_100_members"
)

// BadgeType: static catalog entry (seeded from BadgeCatalog at startup)
type BadgeType struct {
	Code             string    `gorm:"primaryKey" json:"code"` // e.g., "week-warrior"
	Name             string    `gorm:"not null" json:"name"`
	Description      string    `json:"description"`
	IconURL          string    `gorm:"type:text" json:"icon_url"` // R2 URL to SVG/png
	Rarity           string    `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	BonusXP          int64     `json:"bonus_xp" gorm:"default:0"`
	CriteriaType     string    `gorm:"not null" json:"criteria_type"`
	CriteriaValue    float64   `json:"criteria_value"`
	TimeframeDays    int       `json:"timeframe_days"` // 0 = all time
	SpecialCondition string    `json:"special_condition,omitempty"`
	Prerequisites    []string  `gorm:"serializer:json" json:"prerequisites,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge: awarded instance. The composite unique index is the guard that
// makes a concurrent double-award impossible: the losing insert is a no-op.
type UserBadge struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	BadgeCode string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_code"`
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awarded_at"`
	Metadata  string    `gorm:"type:text" json:"metadata,omitempty"` // JSON blob, e.g. {"season_id": "..."}
}

// BadgeProgress expresses partial progress toward an unearned badge,
// clamped so Current <= Required. Display only.
type BadgeProgress struct {
	Badge    BadgeType `json:"badge"`
	Current  float64   `json:"current"`
	Required float64   `json:"required"`
}

// Season placement badge codes, granted by SeasonService.
const (
	BadgeSeasonChampion = "season-champion"
	BadgeSeasonPodium   = "season-podium"
	BadgeSeasonTop10    = "season-top-10"
)

// BadgeCatalog is the fixed badge set. Criteria are data, so the catalog is
// trivially serializable and testable.
var BadgeCatalog = []BadgeType{
	{
		Code:          "first-steps",
		Name:          "First Steps",
		Description:   "Shared your first submission",
		Rarity:        "common",
		BonusXP:       10,
		CriteriaType:  CriteriaSubmissionsCount,
		CriteriaValue: 1,
	},
	{
		Code:          "prolific-creator",
		Name:          "Prolific Creator",
		Description:   "25 submissions and counting",
		Rarity:        "rare",
		BonusXP:       50,
		CriteriaType:  CriteriaSubmissionsCount,
		CriteriaValue: 25,
		Prerequisites: []string{"first-steps"},
	},
	{
		Code:          "centurion",
		Name:          "Centurion",
		Description:   "Reached 1,000 XP",
		Rarity:        "rare",
		BonusXP:       50,
		CriteriaType:  CriteriaXPTotal,
		CriteriaValue: 1000,
	},
	{
		Code:          "xp-legend",
		Name:          "XP Legend",
		Description:   "Reached 10,000 XP",
		Rarity:        "legendary",
		BonusXP:       200,
		CriteriaType:  CriteriaXPTotal,
		CriteriaValue: 10000,
		Prerequisites: []string{"centurion"},
	},
	{
		Code:          "streak-spark",
		Name:          "Streak Spark",
		Description:   "3 days in a row",
		Rarity:        "common",
		BonusXP:       5,
		CriteriaType:  CriteriaStreakDays,
		CriteriaValue: 3,
	},
	{
		Code:          "week-warrior",
		Name:          "Week Warrior",
		Description:   "A full week of daily activity",
		Rarity:        "rare",
		BonusXP:       25,
		CriteriaType:  CriteriaStreakDays,
		CriteriaValue: 7,
		Prerequisites: []string{"streak-spark"},
	},
	{
		Code:          "monthly-master",
		Name:          "Monthly Master",
		Description:   "30 consecutive days of activity",
		Rarity:        "epic",
		BonusXP:       100,
		CriteriaType:  CriteriaStreakDays,
		CriteriaValue: 30,
		Prerequisites: []string{"week-warrior"},
	},
	{
		Code:          "quality-curator",
		Name:          "Quality Curator",
		Description:   "Average clarity of 8+ over your recent submissions",
		Rarity:        "epic",
		BonusXP:       75,
		CriteriaType:  CriteriaQualityAverage,
		CriteriaValue: 8,
		TimeframeDays: 30,
	},
	{
		Code:          "crowd-favorite",
		Name:          "Crowd Favorite",
		Description:   "10 of your prompts saved to member libraries",
		Rarity:        "rare",
		BonusXP:       40,
		CriteriaType:  CriteriaLibraryFavorites,
		CriteriaValue: 10,
	},
	{
		Code:          "helpful-hand",
		Name:          "Helpful Hand",
		Description:   "20 comments rated helpful",
		Rarity:        "rare",
		BonusXP:       40,
		CriteriaType:  CriteriaCommentsHelpful,
		CriteriaValue: 20,
	},
	{
		Code:             "founding-member",
		Name:             "Founding Member",
		Description:      "Among the first 100 members of the community",
		Rarity:           "epic",
		BonusXP:          100,
		CriteriaType:     CriteriaSpecial,
		SpecialCondition: SpecialFirst100Members,
	},
	{
		Code:         BadgeSeasonChampion,
		Name:         "Season Champion",
		Description:  "Finished #1 in a competitive season",
		Rarity:       "legendary",
		BonusXP:      0, // placement XP is granted separately as a season reward
		CriteriaType: CriteriaSpecial,
	},
	{
		Code:         BadgeSeasonPodium,
		Name:         "Podium Finisher",
		Description:  "Finished top 3 in a competitive season",
		Rarity:       "epic",
		BonusXP:      0,
		CriteriaType: CriteriaSpecial,
	},
	{
		Code:         BadgeSeasonTop10,
		Name:         "Top 10 Finisher",
		Description:  "Finished top 10 in a competitive season",
		Rarity:       "rare",
		BonusXP:      0,
		CriteriaType: CriteriaSpecial,
	},
}
