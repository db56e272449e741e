// handlers/engagement_routes.go
package handlers

import (
	"errors"
	"log"
	"time"

	"community-engagement-system/middleware"
	"community-engagement-system/models"
	"community-engagement-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}

func SetupEngagementRoutes(
	app *fiber.App,
	userService *services.UserService,
	streakService *services.StreakService,
	xpService *services.XPService,
	badgeService *services.BadgeService,
	seasonService *services.SeasonService,
) {
	// Member registration + lookup, called by the gateway when a Slack member
	// first interacts with the community.
	app.Post("/users", func(c *fiber.Ctx) error {
		var req struct {
			SlackID     string `json:"slack_id"`
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		user, err := userService.EnsureUser(req.SlackID, req.DisplayName)
		if err != nil {
			return fail(c, "failed to create user", err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	})

	app.Get("/users/slack/:slackID", func(c *fiber.Ctx) error {
		user, err := userService.GetUserBySlackID(c.Params("slackID"))
		if err != nil {
			return fail(c, "failed to fetch user", err)
		}
		return c.JSON(user)
	})

	// 🔐 Secured routes — require user context forwarded by the Gateway.
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Post("/activity", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Kind string `json:"kind"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := streakService.RecordActivity(userID, time.Now(), req.Kind); err != nil {
			return fail(c, "failed to record activity", err)
		}
		data, err := streakService.ComputeStreak(userID)
		if err != nil {
			return fail(c, "failed to compute streak", err)
		}
		return c.JSON(data)
	})

	securedGroup.Get("/user/streak", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		data, err := streakService.ComputeStreak(userID)
		if err != nil {
			return fail(c, "failed to compute streak", err)
		}
		return c.JSON(data)
	})

	// Scoring entry point for a new submission. Streak tracking is
	// enrichment: a streak failure is logged and the submission still scores.
	securedGroup.Post("/submission", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			SubmissionID string                 `json:"submission_id"`
			Quality      *models.QualityMetrics `json:"quality,omitempty"`
			IsFirst      bool                   `json:"is_first"`
			Type         string                 `json:"type"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		if err := streakService.RecordActivity(userID, time.Now(), models.ActivitySubmission); err != nil {
			log.Printf("⚠️ Streak tracking failed for %s: %v", userID, err)
		}

		seasonID := activeSeasonID(seasonService)
		result, err := xpService.AwardForSubmission(userID, req.SubmissionID, req.Quality, req.IsFirst, req.Type, seasonID)
		if err != nil {
			return fail(c, "failed to score submission", err)
		}
		return c.JSON(result)
	})

	// Generic scoring entry point for the remaining event types (comments,
	// reactions, remix improvements, library favorites).
	securedGroup.Post("/award", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			EventType    string                 `json:"event_type"`
			SubmissionID *string                `json:"submission_id,omitempty"`
			Quality      *models.QualityMetrics `json:"quality,omitempty"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		if kind := activityKindFor(req.EventType); kind != "" {
			if err := streakService.RecordActivity(userID, time.Now(), kind); err != nil {
				log.Printf("⚠️ Streak tracking failed for %s: %v", userID, err)
			}
		}

		result, err := xpService.Award(userID, req.EventType, services.AwardOptions{
			SubmissionID: req.SubmissionID,
			Quality:      req.Quality,
			SeasonID:     activeSeasonID(seasonService),
		})
		if err != nil {
			return fail(c, "failed to score event", err)
		}
		return c.JSON(result)
	})

	securedGroup.Get("/user/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		user, err := userService.GetUser(userID)
		if err != nil {
			return fail(c, "failed to fetch profile", err)
		}
		streak, err := streakService.ComputeStreak(userID)
		if err != nil {
			log.Printf("⚠️ Streak computation failed for %s: %v", userID, err)
			streak = &models.StreakData{Status: models.StreakStatusNew}
		}
		return c.JSON(fiber.Map{
			"user":   user,
			"streak": streak,
		})
	})

	securedGroup.Get("/user/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		badges, err := badgeService.EarnedBadges(userID)
		if err != nil {
			return fail(c, "failed to get badges", err)
		}
		return c.JSON(badges)
	})

	securedGroup.Get("/user/badges/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		progress, err := badgeService.Progress(userID)
		if err != nil {
			return fail(c, "failed to get badge progress", err)
		}
		return c.JSON(progress)
	})

	securedGroup.Post("/user/badges/evaluate", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		awarded, err := badgeService.Evaluate(userID)
		if err != nil {
			return fail(c, "failed to evaluate badges", err)
		}
		return c.JSON(fiber.Map{"awarded": awarded})
	})
}

// activeSeasonID resolves the current season once per request; XP scored
// while no season is active is simply untagged.
func activeSeasonID(seasons *services.SeasonService) *string {
	season, err := seasons.ActiveSeason()
	if err != nil {
		return nil
	}
	return &season.ID
}

func activityKindFor(eventType string) string {
	switch eventType {
	case models.EventCommentBase:
		return models.ActivityComment
	case models.EventReactionGiven:
		return models.ActivityReaction
	default:
		return ""
	}
}
