// services/badge.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"community-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB *gorm.DB
	XP *XPService
}

func NewBadgeService(db *gorm.DB, xp *XPService) *BadgeService {
	return &BadgeService{DB: db, XP: xp}
}

// SeedCatalog upserts the static badge catalog into the badge_types table
// (idempotent; safe at every startup).
func (s *BadgeService) SeedCatalog() error {
	for _, badge := range models.BadgeCatalog {
		if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&badge).Error; err != nil {
			return fmt.Errorf("seeding badge %s: %w", badge.Code, err)
		}
	}
	return nil
}

// Evaluate checks every catalog badge the user has not earned yet and awards
// the ones whose criteria now match. The "already earned" check is the first
// guard, so redundant evaluation is a no-op; the conditional insert is the
// guard against a concurrent evaluation awarding the same badge twice.
func (s *BadgeService) Evaluate(userID string) ([]models.BadgeType, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	earned, err := s.earnedSet(userID)
	if err != nil {
		return nil, err
	}
	// Prerequisites are checked against the earned set as of the start of
	// the pass: a dependent badge is never awarded in the same pass as its
	// prerequisite.
	earnedAtStart := make(map[string]bool, len(earned))
	for code := range earned {
		earnedAtStart[code] = true
	}

	var catalog []models.BadgeType
	if err := s.DB.Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("loading badge catalog: %w", err)
	}

	var awarded []models.BadgeType
	for _, badge := range catalog {
		if earned[badge.Code] {
			continue
		}
		if missingPrerequisite(badge, earnedAtStart) {
			continue
		}

		matched, err := s.matches(&user, badge)
		if err != nil {
			return awarded, err
		}
		if !matched {
			continue
		}

		fresh, err := s.grant(userID, badge, "")
		if err != nil {
			return awarded, err
		}
		if !fresh {
			// Lost the race to a concurrent evaluation.
			earned[badge.Code] = true
			continue
		}

		earned[badge.Code] = true
		awarded = append(awarded, badge)
		log.Printf("🎖️ Badge awarded: %s → %s", badge.Name, userID)
	}

	return awarded, nil
}

// matches evaluates the typed criteria predicate against live aggregates.
// Special badges match only through a named condition the evaluator knows;
// season placements and manual grants are always false here.
func (s *BadgeService) matches(user *models.User, badge models.BadgeType) (bool, error) {
	if badge.CriteriaType == models.CriteriaSpecial {
		if badge.SpecialCondition == models.SpecialFirst100Members {
			return s.isFoundingMember(user)
		}
		return false, nil
	}
	current, err := s.metricFor(user, badge)
	if err != nil {
		return false, err
	}
	return current >= badge.CriteriaValue, nil
}

func missingPrerequisite(badge models.BadgeType, earned map[string]bool) bool {
	for _, prereq := range badge.Prerequisites {
		if !earned[prereq] {
			return true
		}
	}
	return false
}

// metricFor dispatches a criteria type to the aggregate it measures.
func (s *BadgeService) metricFor(user *models.User, badge models.BadgeType) (float64, error) {
	switch badge.CriteriaType {
	case models.CriteriaXPTotal:
		return float64(user.TotalXP), nil
	case models.CriteriaSubmissionsCount:
		return float64(user.SubmissionsCount), nil
	case models.CriteriaStreakDays:
		return float64(user.CurrentStreak), nil
	case models.CriteriaQualityAverage:
		return s.rollingQualityAverage(user.ID, badge.TimeframeDays)
	case models.CriteriaLibraryFavorites:
		return float64(user.FavoritesReceived), nil
	case models.CriteriaCommentsHelpful:
		return float64(user.HelpfulComments), nil
	default:
		return 0, nil
	}
}

// rollingQualityAverage averages the clarity score attached to submission
// ledger entries in the timeframe. No scored submissions means 0.
func (s *BadgeService) rollingQualityAverage(userID string, timeframeDays int) (float64, error) {
	query := s.DB.Model(&models.XPLedgerEntry{}).
		Where("user_id = ? AND event_type = ?", userID, models.EventSubmissionBase)
	if timeframeDays > 0 {
		query = query.Where("created_at >= ?", time.Now().AddDate(0, 0, -timeframeDays))
	}

	var entries []models.XPLedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return 0, fmt.Errorf("fetching submission entries: %w", err)
	}

	var sum float64
	var scored int
	for _, entry := range entries {
		if clarity, ok := entry.Breakdown["clarity_score"].(float64); ok {
			sum += clarity
			scored++
		}
	}
	if scored == 0 {
		return 0, nil
	}
	return sum / float64(scored), nil
}

func (s *BadgeService) isFoundingMember(user *models.User) (bool, error) {
	var olderMembers int64
	if err := s.DB.Model(&models.User{}).
		Where("created_at < ?", user.CreatedAt).
		Count(&olderMembers).Error; err != nil {
		return false, fmt.Errorf("counting older members: %w", err)
	}
	return olderMembers < 100, nil
}

// grant performs the conditional set-membership insert and, on a fresh award,
// pays out the badge's one-time bonus through the XP calculator, tagged with
// the badge code so reconciliation can tell badge bonuses apart. Returns
// false when the badge was already present.
func (s *BadgeService) grant(userID string, badge models.BadgeType, metadata string) (bool, error) {
	userBadge := models.UserBadge{
		ID:        uuid.NewString(),
		UserID:    userID,
		BadgeCode: badge.Code,
		Metadata:  metadata,
	}
	res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&userBadge)
	if res.Error != nil {
		return false, fmt.Errorf("awarding badge %s: %w", badge.Code, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if badge.BonusXP > 0 {
		bonus := badge.BonusXP
		if _, err := s.XP.Award(userID, models.EventBadgeBonus, AwardOptions{
			TotalOverride: &bonus,
			Metadata:      map[string]interface{}{"badge_code": badge.Code},
		}); err != nil {
			return true, fmt.Errorf("awarding badge bonus for %s: %w", badge.Code, err)
		}
	}
	return true, nil
}

// GrantSpecial directly awards a special badge (season placements,
// administrative grants). Idempotent per user/badge.
func (s *BadgeService) GrantSpecial(userID, badgeCode, metadata string) (bool, error) {
	var badge models.BadgeType
	if err := s.DB.Where("code = ?", badgeCode).First(&badge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: badge %s", models.ErrNotFound, badgeCode)
		}
		return false, fmt.Errorf("fetching badge: %w", err)
	}
	return s.grant(userID, badge, metadata)
}

// Progress reports partial progress toward every unearned, automatically
// evaluable badge. Display only; Current is clamped to Required.
func (s *BadgeService) Progress(userID string) ([]models.BadgeProgress, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	earned, err := s.earnedSet(userID)
	if err != nil {
		return nil, err
	}

	var catalog []models.BadgeType
	if err := s.DB.Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("loading badge catalog: %w", err)
	}

	var progress []models.BadgeProgress
	for _, badge := range catalog {
		if earned[badge.Code] || badge.CriteriaType == models.CriteriaSpecial {
			continue
		}
		current, err := s.metricFor(&user, badge)
		if err != nil {
			return nil, err
		}
		if current > badge.CriteriaValue {
			current = badge.CriteriaValue
		}
		progress = append(progress, models.BadgeProgress{
			Badge:    badge,
			Current:  current,
			Required: badge.CriteriaValue,
		})
	}
	return progress, nil
}

// EarnedBadges returns the user's earned badges joined with their catalog
// entries, newest first.
func (s *BadgeService) EarnedBadges(userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	if err := s.DB.Where("user_id = ?", userID).
		Order("awarded_at DESC").
		Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("fetching earned badges: %w", err)
	}
	return badges, nil
}

func (s *BadgeService) earnedSet(userID string) (map[string]bool, error) {
	var rows []models.UserBadge
	if err := s.DB.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetching earned set: %w", err)
	}
	earned := make(map[string]bool, len(rows))
	for _, row := range rows {
		earned[row.BadgeCode] = true
	}
	return earned, nil
}
