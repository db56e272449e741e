// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartEngagementScheduler runs the periodic engine entry points: the daily
// at-risk streak scan and the hourly season rollover check.
func StartEngagementScheduler(streaks *StreakService, seasons *SeasonService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Daily at 09:00 UTC: collect members whose streak is about to break so
	// the chat layer can nudge them.
	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(9, 0, 0))),
		gocron.NewTask(func() {
			users, err := streaks.AtRiskUsers()
			if err != nil {
				log.Printf("[Scheduler] At-risk scan failed: %v", err)
				return
			}
			log.Printf("[Scheduler] %d member(s) at risk of losing their streak", len(users))
			for _, u := range users {
				log.Printf("[Scheduler] ⏰ Streak at risk: %s (%d days)", u.SlackID, u.CurrentStreak)
			}
		}),
	)

	// Hourly: roll over the active season once its end date has passed, then
	// hand out placement rewards for the season that just closed. Both are
	// idempotent, so a re-run after a partial failure is safe.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			season, err := seasons.ActiveSeason()
			if err != nil {
				return // no active season, nothing to roll over
			}
			if season.EndsAt.After(time.Now()) {
				return
			}

			summary, err := seasons.EndSeason(season.ID)
			if err != nil {
				log.Printf("[Scheduler] Season rollover failed: %v", err)
				return
			}
			if _, err := seasons.AwardSeasonRewards(summary.EndedSeasonID); err != nil {
				log.Printf("[Scheduler] Season reward pass failed: %v", err)
			}
		}),
	)
}
