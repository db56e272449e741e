// services/season.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"community-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Season rollover parameters.
const (
	seasonDuration     = 3 // months
	rewardXPChampion   = int64(500)
	rewardXPPodium     = int64(250)
	rewardXPTop10      = int64(100)
)

type SeasonService struct {
	DB     *gorm.DB
	XP     *XPService
	Badges *BadgeService
	Cache  *RankingsCache // optional; nil when redis is not configured

	mu         sync.Mutex
	inRollover map[string]bool
}

func NewSeasonService(db *gorm.DB, xp *XPService, badges *BadgeService) *SeasonService {
	return &SeasonService{
		DB:         db,
		XP:         xp,
		Badges:     badges,
		inRollover: make(map[string]bool),
	}
}

// ActiveSeason resolves the single active season. Callers resolve it once per
// logical operation and thread the id through explicitly.
func (s *SeasonService) ActiveSeason() (*models.Season, error) {
	var season models.Season
	if err := s.DB.Where("status = ?", models.SeasonStatusActive).First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active season", models.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching active season: %w", err)
	}
	return &season, nil
}

// GetSeason fetches a season by id.
func (s *SeasonService) GetSeason(seasonID string) (*models.Season, error) {
	var season models.Season
	if err := s.DB.Where("id = ?", seasonID).First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: season %s", models.ErrNotFound, seasonID)
		}
		return nil, fmt.Errorf("fetching season: %w", err)
	}
	return &season, nil
}

// CreateSeason opens a new active season. Rejected when the range is invalid,
// the start is in the past, the range overlaps a non-ended season, or another
// season is already active.
func (s *SeasonService) CreateSeason(number int, start, end time.Time, decayFactor float64) (*models.Season, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: season start must precede end", models.ErrValidation)
	}
	if start.Before(time.Now()) {
		return nil, fmt.Errorf("%w: season start must not be in the past", models.ErrValidation)
	}
	if decayFactor < 0 || decayFactor > 1 {
		return nil, fmt.Errorf("%w: decay factor must be in [0,1]", models.ErrValidation)
	}

	var active int64
	if err := s.DB.Model(&models.Season{}).
		Where("status = ?", models.SeasonStatusActive).
		Count(&active).Error; err != nil {
		return nil, fmt.Errorf("checking active seasons: %w", err)
	}
	if active > 0 {
		return nil, fmt.Errorf("%w: a season is already active", models.ErrConflict)
	}

	return s.insertSeason(number, start, end, decayFactor)
}

// insertSeason is the shared insert path; rollover uses it without the
// past-start check (a late rollover legitimately back-dates the next start).
func (s *SeasonService) insertSeason(number int, start, end time.Time, decayFactor float64) (*models.Season, error) {
	var overlapping int64
	if err := s.DB.Model(&models.Season{}).
		Where("status <> ? AND starts_at < ? AND ends_at > ?", models.SeasonStatusEnded, end, start).
		Count(&overlapping).Error; err != nil {
		return nil, fmt.Errorf("checking season overlap: %w", err)
	}
	if overlapping > 0 {
		return nil, fmt.Errorf("%w: season range overlaps an existing season", models.ErrConflict)
	}

	season := models.Season{
		ID:          uuid.NewString(),
		Number:      number,
		StartsAt:    start,
		EndsAt:      end,
		Status:      models.SeasonStatusActive,
		DecayFactor: decayFactor,
	}
	if err := s.DB.Create(&season).Error; err != nil {
		return nil, fmt.Errorf("creating season: %w", err)
	}
	log.Printf("🏁 Season %d opened: %s → %s (decay %.2f)",
		season.Number, start.Format("2006-01-02"), end.Format("2006-01-02"), decayFactor)
	return &season, nil
}

// PauseSeason flips an active season to paused.
func (s *SeasonService) PauseSeason(seasonID string) error {
	return s.transition(seasonID, models.SeasonStatusActive, models.SeasonStatusPaused)
}

// ResumeSeason flips a paused season back to active.
func (s *SeasonService) ResumeSeason(seasonID string) error {
	return s.transition(seasonID, models.SeasonStatusPaused, models.SeasonStatusActive)
}

// transition performs a conditional status flip; RowsAffected tells us
// whether we actually held the expected state.
func (s *SeasonService) transition(seasonID, from, to string) error {
	res := s.DB.Model(&models.Season{}).
		Where("id = ? AND status = ?", seasonID, from).
		UpdateColumn("status", to)
	if res.Error != nil {
		return fmt.Errorf("updating season status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetSeason(seasonID); err != nil {
			return err
		}
		return fmt.Errorf("%w: season %s is not %s", models.ErrConflict, seasonID, from)
	}
	return nil
}

// EndSeason applies proportional decay to every member, marks the season
// ended, and immediately opens the next one. Only one rollover per season may
// be in flight in this process; partial completion is an error state detected
// by reconciliation, not silently retried.
func (s *SeasonService) EndSeason(seasonID string) (*models.TransitionSummary, error) {
	s.mu.Lock()
	if s.inRollover[seasonID] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: rollover already in flight for season %s", models.ErrConflict, seasonID)
	}
	s.inRollover[seasonID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inRollover, seasonID)
		s.mu.Unlock()
	}()

	season, err := s.GetSeason(seasonID)
	if err != nil {
		return nil, err
	}
	if season.Status != models.SeasonStatusActive {
		return nil, fmt.Errorf("%w: season %s is not active", models.ErrConflict, seasonID)
	}

	summary := &models.TransitionSummary{EndedSeasonID: seasonID}

	// Decay: floor(total * factor), capped at the current total by
	// construction, so the aggregate can never go negative.
	var users []models.User
	if err := s.DB.Where("total_xp > 0").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users for decay: %w", err)
	}
	for _, user := range users {
		decay := int64(float64(user.TotalXP) * season.DecayFactor)
		if decay <= 0 {
			continue
		}
		override := -decay
		if _, err := s.XP.Award(user.ID, models.EventSeasonDecay, AwardOptions{
			TotalOverride: &override,
			SeasonID:      &season.ID,
		}); err != nil {
			return summary, fmt.Errorf("applying decay to %s: %w", user.ID, err)
		}
		summary.UsersDecayed++
		summary.TotalDecayed += decay
	}

	if err := s.transition(seasonID, models.SeasonStatusActive, models.SeasonStatusEnded); err != nil {
		return summary, err
	}

	nextStart := season.EndsAt.AddDate(0, 0, 1)
	next, err := s.insertSeason(season.Number+1, nextStart, nextStart.AddDate(0, seasonDuration, 0), season.DecayFactor)
	if err != nil {
		return summary, err
	}
	summary.NextSeasonID = next.ID

	log.Printf("🏁 Season %d ended: %d user(s) decayed %d XP total; season %d opened",
		season.Number, summary.UsersDecayed, summary.TotalDecayed, next.Number)
	return summary, nil
}

// Rankings orders participants by season-scoped XP, descending, ties broken
// by earliest account creation. Decay and reward entries are excluded so the
// leaderboard reflects competitive scoring only. The result is mirrored into
// the redis cache when one is configured.
func (s *SeasonService) Rankings(seasonID string) ([]models.RankingEntry, error) {
	if _, err := s.GetSeason(seasonID); err != nil {
		return nil, err
	}

	var entries []models.RankingEntry
	err := s.DB.Raw(`
		SELECT l.user_id, u.display_name, SUM(l.value) AS season_xp
		FROM xp_ledger_entries l
		INNER JOIN users u ON u.id = l.user_id
		WHERE l.season_id = ? AND l.event_type NOT IN (?, ?)
		GROUP BY l.user_id, u.display_name, u.created_at
		ORDER BY season_xp DESC, u.created_at ASC
	`, seasonID, models.EventSeasonDecay, models.EventSeasonReward).Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("computing rankings: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	if s.Cache != nil {
		if err := s.Cache.Update(context.Background(), seasonID, entries); err != nil {
			log.Printf("⚠️ Failed to refresh rankings cache for season %s: %v", seasonID, err)
		}
	}

	return entries, nil
}

// AwardSeasonRewards hands out placement XP and exclusive badges for a
// season. Idempotent: a user with an existing season_reward ledger entry for
// this season is skipped.
func (s *SeasonService) AwardSeasonRewards(seasonID string) ([]models.RankingEntry, error) {
	rankings, err := s.Rankings(seasonID)
	if err != nil {
		return nil, err
	}

	var rewarded []models.RankingEntry
	for _, entry := range rankings {
		var rewardXP int64
		var badgeCode string
		switch {
		case entry.Rank == 1:
			rewardXP, badgeCode = rewardXPChampion, models.BadgeSeasonChampion
		case entry.Rank <= 3:
			rewardXP, badgeCode = rewardXPPodium, models.BadgeSeasonPodium
		case entry.Rank <= 10:
			rewardXP, badgeCode = rewardXPTop10, models.BadgeSeasonTop10
		default:
			return rewarded, nil
		}

		var existing int64
		if err := s.DB.Model(&models.XPLedgerEntry{}).
			Where("user_id = ? AND season_id = ? AND event_type = ?",
				entry.UserID, seasonID, models.EventSeasonReward).
			Count(&existing).Error; err != nil {
			return rewarded, fmt.Errorf("checking existing reward: %w", err)
		}
		if existing > 0 {
			continue
		}

		if _, err := s.XP.Award(entry.UserID, models.EventSeasonReward, AwardOptions{
			TotalOverride: &rewardXP,
			SeasonID:      &seasonID,
			Metadata:      map[string]interface{}{"rank": float64(entry.Rank)},
		}); err != nil {
			return rewarded, fmt.Errorf("awarding placement XP to %s: %w", entry.UserID, err)
		}
		if _, err := s.Badges.GrantSpecial(entry.UserID, badgeCode,
			fmt.Sprintf(`{"season_id":%q,"rank":%d}`, seasonID, entry.Rank)); err != nil {
			return rewarded, fmt.Errorf("granting placement badge to %s: %w", entry.UserID, err)
		}

		rewarded = append(rewarded, entry)
		log.Printf("🏆 Season reward: rank %d → %s (+%d XP, %s)", entry.Rank, entry.UserID, rewardXP, badgeCode)
	}
	return rewarded, nil
}
