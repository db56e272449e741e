// services/streak.go
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

type StreakService struct {
	DB *gorm.DB
	XP *XPService

	// Now is swappable so tests can pin "today".
	Now func() time.Time
}

func NewStreakService(db *gorm.DB) *StreakService {
	return &StreakService{DB: db, Now: time.Now}
}

// dateOnly truncates to UTC midnight; all streak math runs on calendar days.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordActivity inserts one (user, day, kind) row. A second call for the
// same day is an idempotent no-op, not an error. On the first activity of a
// new day the streak is recomputed, persisted on the aggregate, and a streak
// bonus is awarded through the XP calculator when a threshold is reached.
func (s *StreakService) RecordActivity(userID string, date time.Time, kind string) error {
	if kind == "" {
		return fmt.Errorf("%w: activity kind is required", models.ErrValidation)
	}

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return fmt.Errorf("fetching user: %w", err)
	}

	day := dateOnly(date)

	activity := models.StreakActivity{
		ID:           uuid.NewString(),
		UserID:       userID,
		ActivityDate: day,
		Kind:         kind,
	}
	if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&activity).Error; err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}

	// The day marker is the store-layer guard: only the insert that wins it
	// recomputes the streak and pays a threshold bonus, no matter how many
	// activities of whatever kind land on the same day concurrently.
	marker := models.StreakDay{
		ID:           uuid.NewString(),
		UserID:       userID,
		ActivityDate: day,
	}
	res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
	if res.Error != nil {
		return fmt.Errorf("recording activity day: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Same day already counted for streak purposes.
		return nil
	}

	data, err := s.ComputeStreak(userID)
	if err != nil {
		return err
	}

	if err := s.DB.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"current_streak": data.CurrentStreak,
			"longest_streak": data.LongestStreak,
		}).Error; err != nil {
		return fmt.Errorf("persisting streak state: %w", err)
	}

	// Flat bonus the day a threshold is reached; highest threshold only.
	// Flat means flat: the bonus bypasses the multiplier pipeline.
	if bonus := StreakBonusFor(data.CurrentStreak); bonus > 0 && s.XP != nil {
		streakDays := float64(data.CurrentStreak)
		if _, err := s.XP.Award(userID, models.EventStreakBonus, AwardOptions{
			TotalOverride: &bonus,
			Metadata:      map[string]interface{}{"streak_days": streakDays},
		}); err != nil {
			return fmt.Errorf("awarding streak bonus: %w", err)
		}
		log.Printf("🔥 Streak bonus: %s → %d days (+%d XP)", userID, data.CurrentStreak, bonus)
	}

	return nil
}

// StreakBonusFor returns the flat bonus for exactly reaching a threshold day,
// 0 otherwise. Thresholds are not cumulative.
func StreakBonusFor(currentStreak int) int64 {
	for _, tier := range models.StreakBonusSchedule {
		if currentStreak == tier.Days {
			return tier.Bonus
		}
	}
	return 0
}

// ComputeStreak derives current/longest streak and risk status from the
// distinct activity dates. Longest is monotone: it never drops below the
// value already stored on the aggregate.
func (s *StreakService) ComputeStreak(userID string) (*models.StreakData, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	dates, err := s.distinctActivityDates(userID)
	if err != nil {
		return nil, err
	}

	if len(dates) == 0 {
		return &models.StreakData{
			CurrentStreak: 0,
			LongestStreak: user.LongestStreak,
			Status:        models.StreakStatusNew,
		}, nil
	}

	today := dateOnly(s.Now())
	gap := int(today.Sub(dates[0]).Hours() / 24)

	current := 0
	status := models.StreakStatusBroken
	daysUntilRisk := 0
	if gap <= 1 {
		current = 1
		for i := 1; i < len(dates); i++ {
			if int(dates[i-1].Sub(dates[i]).Hours()/24) == 1 {
				current++
			} else {
				break
			}
		}
		if gap == 0 {
			status = models.StreakStatusActive
			daysUntilRisk = 1
		} else {
			status = models.StreakStatusAtRisk
		}
	}

	longest := longestRun(dates)
	if current > longest {
		longest = current
	}
	if user.LongestStreak > longest {
		longest = user.LongestStreak
	}

	return &models.StreakData{
		CurrentStreak: current,
		LongestStreak: longest,
		Status:        status,
		DaysUntilRisk: daysUntilRisk,
	}, nil
}

// longestRun scans the full descending date history for the longest run of
// consecutive calendar days.
func longestRun(datesDesc []time.Time) int {
	if len(datesDesc) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(datesDesc); i++ {
		if int(datesDesc[i-1].Sub(datesDesc[i]).Hours()/24) == 1 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	return longest
}

// distinctActivityDates returns the user's activity days, newest first.
func (s *StreakService) distinctActivityDates(userID string) ([]time.Time, error) {
	var rows []models.StreakActivity
	if err := s.DB.Where("user_id = ?", userID).
		Order("activity_date DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetching activity history: %w", err)
	}

	var dates []time.Time
	var last time.Time
	for _, row := range rows {
		day := dateOnly(row.ActivityDate)
		if !last.IsZero() && day.Equal(last) {
			continue
		}
		dates = append(dates, day)
		last = day
	}
	return dates, nil
}

// AtRiskUsers returns users whose streak is at risk: their most recent
// activity was exactly yesterday and nothing has been recorded today. The
// daily batch job feeds this list to the chat-platform nudge sender.
func (s *StreakService) AtRiskUsers() ([]models.User, error) {
	today := dateOnly(s.Now())
	yesterday := today.AddDate(0, 0, -1)

	var candidates []models.User
	if err := s.DB.Where("current_streak > 0").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("listing streak holders: %w", err)
	}

	var atRisk []models.User
	for _, user := range candidates {
		var latest models.StreakActivity
		err := s.DB.Where("user_id = ?", user.ID).
			Order("activity_date DESC").
			First(&latest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching latest activity: %w", err)
		}
		if dateOnly(latest.ActivityDate).Equal(yesterday) {
			atRisk = append(atRisk, user)
		}
	}
	return atRisk, nil
}
