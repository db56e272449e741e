// services/xp.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"community-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Engagement multiplier bounds.
const (
	MultiplierFloor = 0.5
	MultiplierCeil  = 1.5
)

// AwardOptions carries the optional inputs to one award. TotalOverride
// bypasses the whole pipeline with a signed value (season decay, season
// rewards); BaseOverride replaces only the base table lookup.
type AwardOptions struct {
	BaseOverride  *int64
	TotalOverride *int64
	SubmissionID  *string
	Quality       *models.QualityMetrics
	SeasonID      *string
	Metadata      map[string]interface{}
}

type XPService struct {
	DB *gorm.DB

	// Badges is wired after construction (same-package cycle: badge bonuses
	// are awarded through this service). Evaluation after an award is
	// enrichment: failures are logged, never propagated.
	Badges *BadgeService
}

func NewXPService(db *gorm.DB) *XPService {
	return &XPService{DB: db}
}

// Award scores one event, appends the ledger entry, and atomically increments
// the user aggregate. The caller supplies any de-duplication key; this
// component does not deduplicate retries.
func (s *XPService) Award(userID, eventType string, opts AwardOptions) (*models.XPResult, error) {
	base, ok := models.BaseXPTable[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event type %q", models.ErrValidation, eventType)
	}
	if models.InternalEventTypes[eventType] && opts.TotalOverride == nil {
		return nil, fmt.Errorf("%w: event type %q is awarded internally", models.ErrValidation, eventType)
	}

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	var result *models.XPResult
	if opts.TotalOverride != nil {
		result = &models.XPResult{
			BaseXP:     *opts.TotalOverride,
			TotalXP:    *opts.TotalOverride,
			Multiplier: 1.0,
			Breakdown:  map[string]float64{"override": float64(*opts.TotalOverride)},
		}
	} else {
		if opts.BaseOverride != nil {
			base = *opts.BaseOverride
		}
		computed, err := s.compute(&user, eventType, base, opts)
		if err != nil {
			return nil, err
		}
		result = computed
	}

	entry := models.XPLedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		EventType:    eventType,
		Value:        result.TotalXP,
		SubmissionID: opts.SubmissionID,
		SeasonID:     opts.SeasonID,
		Breakdown:    mergeBreakdown(result.Breakdown, opts.Metadata),
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("appending ledger entry: %w", err)
	}
	result.EntryID = entry.ID

	// Atomic add at the store layer — never a read-then-write of the full
	// value, so concurrent awards cannot lose an update.
	updates := map[string]interface{}{
		"total_xp": gorm.Expr("total_xp + ?", result.TotalXP),
	}
	for column := range counterColumnsFor(eventType, opts.Quality) {
		updates[column] = gorm.Expr(column + " + 1")
	}
	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumns(updates).Error; err != nil {
		return nil, fmt.Errorf("incrementing aggregate: %w", err)
	}

	if s.Badges != nil && eventType != models.EventBadgeBonus {
		if _, err := s.Badges.Evaluate(userID); err != nil {
			log.Printf("⚠️ Badge evaluation after %s award failed for %s: %v", eventType, userID, err)
		}
	}

	return result, nil
}

// compute runs the pure scoring pipeline:
// total = round((base + quality) * multiplier) + bonus - penalty, floored at 0.
func (s *XPService) compute(user *models.User, eventType string, base int64, opts AwardOptions) (*models.XPResult, error) {
	breakdown := map[string]float64{"base": float64(base)}

	qualityAdj := qualityAdjustment(opts.Quality)
	if opts.Quality != nil {
		breakdown["quality"] = float64(qualityAdj)
		breakdown["clarity_score"] = opts.Quality.Clarity
	}

	multiplier, err := s.engagementMultiplier(user)
	if err != nil {
		return nil, err
	}
	breakdown["multiplier"] = multiplier

	var bonus int64
	if opts.SeasonID != nil {
		seasonal, err := s.seasonalBonus(user.ID, *opts.SeasonID)
		if err != nil {
			return nil, err
		}
		bonus += seasonal
		breakdown["seasonal"] = float64(seasonal)
	}

	community, err := s.communityBonus(user.ID, eventType)
	if err != nil {
		return nil, err
	}
	bonus += community
	if community != 0 {
		breakdown["community"] = float64(community)
	}

	penalty, err := s.rapidSubmissionPenalty(user.ID, eventType)
	if err != nil {
		return nil, err
	}
	if penalty != 0 {
		breakdown["penalty"] = float64(penalty)
	}

	total := int64(math.Round(float64(base+qualityAdj)*multiplier)) + bonus - penalty
	if total < 0 {
		total = 0
	}

	return &models.XPResult{
		BaseXP:     base,
		BonusXP:    bonus,
		PenaltyXP:  penalty,
		TotalXP:    total,
		Multiplier: multiplier,
		Breakdown:  breakdown,
	}, nil
}

// qualityAdjustment applies the threshold bands. Adjustments are additive
// across independent metrics, not mutually exclusive.
func qualityAdjustment(q *models.QualityMetrics) int64 {
	if q == nil {
		return 0
	}
	var adj int64
	switch {
	case q.Clarity >= 9:
		adj += 5
	case q.Clarity >= 7:
		adj += 2
	case q.Clarity > 0 && q.Clarity < 4:
		adj -= 3
	}
	if q.Helpfulness >= 8 {
		adj += 3
	}
	if q.Originality >= 8 {
		adj += 4
	}
	return adj
}

// engagementMultiplier derives the bounded scalar from trailing-30-day
// activity volume and current streak length.
func (s *XPService) engagementMultiplier(user *models.User) (float64, error) {
	since := time.Now().AddDate(0, 0, -30)
	var recentEvents int64
	if err := s.DB.Model(&models.XPLedgerEntry{}).
		Where("user_id = ? AND created_at >= ?", user.ID, since).
		Count(&recentEvents).Error; err != nil {
		return 0, fmt.Errorf("counting trailing events: %w", err)
	}

	multiplier := 1.0
	switch {
	case recentEvents >= 50:
		multiplier += 0.2
	case recentEvents >= 20:
		multiplier += 0.1
	case recentEvents <= 3:
		multiplier -= 0.1
	}

	if user.CurrentStreak >= 30 {
		multiplier += 0.15
	} else if user.CurrentStreak >= 7 {
		multiplier += 0.05
	}

	if multiplier > MultiplierCeil {
		multiplier = MultiplierCeil
	}
	if multiplier < MultiplierFloor {
		multiplier = MultiplierFloor
	}
	return multiplier, nil
}

// seasonalBonus tapers across the season: early engagement is worth a little
// extra, mid-season totals a little less.
func (s *XPService) seasonalBonus(userID, seasonID string) (int64, error) {
	var seasonXP int64
	if err := s.DB.Model(&models.XPLedgerEntry{}).
		Where("user_id = ? AND season_id = ?", userID, seasonID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&seasonXP).Error; err != nil {
		return 0, fmt.Errorf("summing season xp: %w", err)
	}

	switch {
	case seasonXP < 1000:
		return 2, nil
	case seasonXP >= 2000 && seasonXP < 5000:
		return 1, nil
	default:
		return 0, nil
	}
}

// communityBonus rewards giving: frequent helpful reactions and remix
// improvements.
func (s *XPService) communityBonus(userID, eventType string) (int64, error) {
	switch eventType {
	case models.EventReactionGiven:
		since := time.Now().AddDate(0, 0, -7)
		var recentReactions int64
		if err := s.DB.Model(&models.XPLedgerEntry{}).
			Where("user_id = ? AND event_type = ? AND created_at >= ?", userID, models.EventReactionGiven, since).
			Count(&recentReactions).Error; err != nil {
			return 0, fmt.Errorf("counting recent reactions: %w", err)
		}
		if recentReactions >= 10 {
			return 3, nil
		}
		if recentReactions >= 5 {
			return 1, nil
		}
		return 0, nil
	case models.EventRemixImprovement:
		return 2, nil
	default:
		return 0, nil
	}
}

// rapidSubmissionPenalty is a quality-control penalty, independent of any
// transport-level rate limiting.
func (s *XPService) rapidSubmissionPenalty(userID, eventType string) (int64, error) {
	if eventType != models.EventSubmissionBase {
		return 0, nil
	}
	since := time.Now().Add(-24 * time.Hour)
	var recentSubmissions int64
	if err := s.DB.Model(&models.XPLedgerEntry{}).
		Where("user_id = ? AND event_type = ? AND created_at >= ?", userID, models.EventSubmissionBase, since).
		Count(&recentSubmissions).Error; err != nil {
		return 0, fmt.Errorf("counting recent submissions: %w", err)
	}
	if recentSubmissions >= 5 {
		return 3, nil
	}
	return 0, nil
}

// AwardForSubmission composes the awards a single submission can trigger and
// returns their sum.
func (s *XPService) AwardForSubmission(userID, submissionID string, quality *models.QualityMetrics, isFirstSubmission bool, submissionType string, seasonID *string) (*models.XPResult, error) {
	combined := &models.XPResult{Breakdown: map[string]float64{}}

	baseRes, err := s.Award(userID, models.EventSubmissionBase, AwardOptions{
		SubmissionID: &submissionID,
		Quality:      quality,
		SeasonID:     seasonID,
	})
	if err != nil {
		return nil, err
	}
	accumulate(combined, baseRes, "submission")
	combined.Multiplier = baseRes.Multiplier

	if isFirstSubmission {
		res, err := s.Award(userID, models.EventFirstSubmission, AwardOptions{
			SubmissionID: &submissionID,
			SeasonID:     seasonID,
		})
		if err != nil {
			return nil, err
		}
		accumulate(combined, res, "first_submission")
	}

	if submissionType == "weekly_challenge" {
		res, err := s.Award(userID, models.EventWeeklyChallenge, AwardOptions{
			SubmissionID: &submissionID,
			SeasonID:     seasonID,
		})
		if err != nil {
			return nil, err
		}
		accumulate(combined, res, "weekly_challenge")
	}

	if quality != nil && quality.Clarity >= 9 {
		clarityBonus := int64(5)
		res, err := s.Award(userID, models.EventClarityBonus, AwardOptions{
			BaseOverride: &clarityBonus,
			SubmissionID: &submissionID,
			SeasonID:     seasonID,
		})
		if err != nil {
			return nil, err
		}
		accumulate(combined, res, "clarity_bonus")
	}

	return combined, nil
}

func accumulate(into, from *models.XPResult, label string) {
	into.BaseXP += from.BaseXP
	into.BonusXP += from.BonusXP
	into.PenaltyXP += from.PenaltyXP
	into.TotalXP += from.TotalXP
	into.Breakdown[label] = float64(from.TotalXP)
}

func mergeBreakdown(numeric map[string]float64, metadata map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(numeric)+len(metadata))
	for k, v := range numeric {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	return merged
}

// counterColumnsFor maps an event to the denormalized aggregate counters it
// bumps alongside the XP increment.
func counterColumnsFor(eventType string, quality *models.QualityMetrics) map[string]struct{} {
	columns := map[string]struct{}{}
	switch eventType {
	case models.EventSubmissionBase:
		columns["submissions_count"] = struct{}{}
	case models.EventCommentBase:
		columns["comments_count"] = struct{}{}
		if quality != nil && quality.Helpfulness >= 8 {
			columns["helpful_comments"] = struct{}{}
		}
	case models.EventReactionGiven:
		columns["reactions_given"] = struct{}{}
	case models.EventLibraryFavorite:
		columns["favorites_received"] = struct{}{}
	}
	return columns
}

// ReconciliationReport describes drift between the ledger and one aggregate.
type ReconciliationReport struct {
	UserID    string `json:"user_id"`
	LedgerSum int64  `json:"ledger_sum"`
	Aggregate int64  `json:"aggregate"`
	Drift     int64  `json:"drift"`
}

// ReconcileUser recomputes total_xp from the full ledger sum and corrects the
// aggregate. This is the recovery mechanism for a crash between ledger write
// and aggregate update; it is idempotent and safe to re-run.
func (s *XPService) ReconcileUser(userID string) (*ReconciliationReport, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	var ledgerSum int64
	if err := s.DB.Model(&models.XPLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&ledgerSum).Error; err != nil {
		return nil, fmt.Errorf("summing ledger: %w", err)
	}

	report := &ReconciliationReport{
		UserID:    userID,
		LedgerSum: ledgerSum,
		Aggregate: user.TotalXP,
		Drift:     user.TotalXP - ledgerSum,
	}
	if report.Drift == 0 {
		return report, nil
	}

	log.Printf("⚠️ %v: user %s aggregate=%d ledger=%d, correcting",
		models.ErrInvariantViolation, userID, user.TotalXP, ledgerSum)
	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("total_xp", ledgerSum).Error; err != nil {
		return nil, fmt.Errorf("correcting aggregate: %w", err)
	}
	return report, nil
}

// ReconcileAll runs the reconciliation pass over every user and returns only
// the reports that detected drift.
func (s *XPService) ReconcileAll() ([]ReconciliationReport, error) {
	var userIDs []string
	if err := s.DB.Model(&models.User{}).Select("id").Scan(&userIDs).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	var drifted []ReconciliationReport
	for _, id := range userIDs {
		report, err := s.ReconcileUser(id)
		if err != nil {
			return drifted, err
		}
		if report.Drift != 0 {
			drifted = append(drifted, *report)
		}
	}
	return drifted, nil
}
