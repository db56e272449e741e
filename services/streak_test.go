// services/streak_test.go
package services

import (
	"sync"
	"testing"
	"time"

	"community-engagement-system/models"

	"github.com/stretchr/testify/require"
)

// pinDay points the streak clock at a fixed calendar day.
func pinDay(s *StreakService, day time.Time) {
	s.Now = func() time.Time { return day }
}

func TestRecordActivityRequiresKind(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "S001")

	err := env.Streaks.RecordActivity(user.ID, time.Now(), "")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestRecordActivityUnknownUser(t *testing.T) {
	env := setupTestEnv(t)

	err := env.Streaks.RecordActivity("nope", time.Now(), models.ActivitySubmission)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestThreeDayStreakAwardsBonusOnce(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "S002")
	day := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		current := day.AddDate(0, 0, i)
		pinDay(env.Streaks, current)
		require.NoError(t, env.Streaks.RecordActivity(user.ID, current, models.ActivitySubmission))
	}

	after := env.fetchUser(t, user.ID)
	require.Equal(t, 3, after.CurrentStreak)
	require.Equal(t, 3, after.LongestStreak)

	bonuses := env.ledgerEntries(t, user.ID, models.EventStreakBonus)
	require.Len(t, bonuses, 1)
	require.Equal(t, int64(5), bonuses[0].Value)
	require.Equal(t, int64(5), after.TotalXP)

	// A second activity on the threshold day must not pay the bonus again.
	third := day.AddDate(0, 0, 2)
	require.NoError(t, env.Streaks.RecordActivity(user.ID, third, models.ActivityComment))
	require.Len(t, env.ledgerEntries(t, user.ID, models.EventStreakBonus), 1)

	// Day 4 extends the streak but sits between thresholds: no new bonus.
	fourth := day.AddDate(0, 0, 3)
	pinDay(env.Streaks, fourth)
	require.NoError(t, env.Streaks.RecordActivity(user.ID, fourth, models.ActivitySubmission))
	after = env.fetchUser(t, user.ID)
	require.Equal(t, 4, after.CurrentStreak)
	require.Len(t, env.ledgerEntries(t, user.ID, models.EventStreakBonus), 1)
}

func TestConcurrentSameDayActivitiesPayBonusOnce(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "S002b")
	day := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		current := day.AddDate(0, 0, i)
		pinDay(env.Streaks, current)
		require.NoError(t, env.Streaks.RecordActivity(user.ID, current, models.ActivitySubmission))
	}

	// Two different-kind activities race on the threshold day. Only the one
	// winning the day-marker insert may recompute and pay the bonus.
	third := day.AddDate(0, 0, 2)
	pinDay(env.Streaks, third)
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, kind := range []string{models.ActivitySubmission, models.ActivityComment} {
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()
			errs <- env.Streaks.RecordActivity(user.ID, third, kind)
		}(kind)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	bonuses := env.ledgerEntries(t, user.ID, models.EventStreakBonus)
	require.Len(t, bonuses, 1)
	require.Equal(t, int64(5), bonuses[0].Value)
	require.Equal(t, 3, env.fetchUser(t, user.ID).CurrentStreak)
}

func TestStreakBonusSchedule(t *testing.T) {
	require.Equal(t, int64(0), StreakBonusFor(0))
	require.Equal(t, int64(5), StreakBonusFor(3))
	require.Equal(t, int64(0), StreakBonusFor(4))
	require.Equal(t, int64(15), StreakBonusFor(7))
	require.Equal(t, int64(25), StreakBonusFor(14))
	require.Equal(t, int64(50), StreakBonusFor(30))
	require.Equal(t, int64(0), StreakBonusFor(31))
}

func TestMissedDayBreaksStreakButLongestIsMonotone(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "S003")
	day := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		current := day.AddDate(0, 0, i)
		pinDay(env.Streaks, current)
		require.NoError(t, env.Streaks.RecordActivity(user.ID, current, models.ActivitySubmission))
	}

	// Skip day 5 entirely, come back on day 6.
	comeback := day.AddDate(0, 0, 5)
	pinDay(env.Streaks, comeback)
	require.NoError(t, env.Streaks.RecordActivity(user.ID, comeback, models.ActivityComment))

	after := env.fetchUser(t, user.ID)
	require.Equal(t, 1, after.CurrentStreak)
	require.Equal(t, 4, after.LongestStreak, "longest streak never shrinks")

	data, err := env.Streaks.ComputeStreak(user.ID)
	require.NoError(t, err)
	require.Equal(t, models.StreakStatusActive, data.Status)
	require.Equal(t, 1, data.CurrentStreak)
	require.Equal(t, 4, data.LongestStreak)
}

func TestComputeStreakStatuses(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "S004")
	day := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

	pinDay(env.Streaks, day)
	data, err := env.Streaks.ComputeStreak(user.ID)
	require.NoError(t, err)
	require.Equal(t, models.StreakStatusNew, data.Status)

	require.NoError(t, env.Streaks.RecordActivity(user.ID, day, models.ActivitySubmission))
	data, err = env.Streaks.ComputeStreak(user.ID)
	require.NoError(t, err)
	require.Equal(t, models.StreakStatusActive, data.Status)
	require.Equal(t, 1, data.DaysUntilRisk)

	// Nothing today, last activity yesterday: at risk but not yet broken.
	pinDay(env.Streaks, day.AddDate(0, 0, 1))
	data, err = env.Streaks.ComputeStreak(user.ID)
	require.NoError(t, err)
	require.Equal(t, models.StreakStatusAtRisk, data.Status)
	require.Equal(t, 1, data.CurrentStreak)

	// Two silent days: broken.
	pinDay(env.Streaks, day.AddDate(0, 0, 2))
	data, err = env.Streaks.ComputeStreak(user.ID)
	require.NoError(t, err)
	require.Equal(t, models.StreakStatusBroken, data.Status)
	require.Equal(t, 0, data.CurrentStreak)
}

func TestAtRiskUsersScan(t *testing.T) {
	env := setupTestEnv(t)
	lapsing := env.createUser(t, "S005")
	active := env.createUser(t, "S006")
	day := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	pinDay(env.Streaks, day)
	require.NoError(t, env.Streaks.RecordActivity(lapsing.ID, day, models.ActivitySubmission))
	require.NoError(t, env.Streaks.RecordActivity(active.ID, day, models.ActivitySubmission))

	next := day.AddDate(0, 0, 1)
	pinDay(env.Streaks, next)
	require.NoError(t, env.Streaks.RecordActivity(active.ID, next, models.ActivityReaction))

	atRisk, err := env.Streaks.AtRiskUsers()
	require.NoError(t, err)
	ids := make([]string, 0, len(atRisk))
	for _, u := range atRisk {
		ids = append(ids, u.ID)
	}
	require.Contains(t, ids, lapsing.ID)
	require.NotContains(t, ids, active.ID)

	// Another silent day and the streak is gone, not merely at risk.
	pinDay(env.Streaks, day.AddDate(0, 0, 2))
	atRisk, err = env.Streaks.AtRiskUsers()
	require.NoError(t, err)
	for _, u := range atRisk {
		require.NotEqual(t, lapsing.ID, u.ID)
	}
}
