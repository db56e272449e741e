// handlers/season_routes.go
package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"community-engagement-system/middleware"
	"community-engagement-system/models"
	"community-engagement-system/services"
	"community-engagement-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm/clause"
)

func SetupSeasonRoutes(
	app *fiber.App,
	seasonService *services.SeasonService,
	badgeService *services.BadgeService,
	xpService *services.XPService,
) {
	app.Get("/seasons/active", func(c *fiber.Ctx) error {
		season, err := seasonService.ActiveSeason()
		if err != nil {
			return fail(c, "no active season", err)
		}
		return c.JSON(season)
	})

	app.Get("/seasons/:id/rankings", func(c *fiber.Ctx) error {
		seasonID := c.Params("id")
		limit, _ := strconv.Atoi(c.Query("limit", "0"))

		// Cache fast path for bounded reads; a miss falls back to the ledger.
		if limit > 0 && seasonService.Cache != nil {
			cached, err := seasonService.Cache.TopN(context.Background(), seasonID, limit)
			if err == nil && len(cached) > 0 {
				return c.JSON(cached)
			}
		}

		rankings, err := seasonService.Rankings(seasonID)
		if err != nil {
			return fail(c, "failed to compute rankings", err)
		}
		if limit > 0 && limit < len(rankings) {
			rankings = rankings[:limit]
		}
		return c.JSON(rankings)
	})

	// Admin endpoints: user context plus the admin role from the Gateway.
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/seasons", func(c *fiber.Ctx) error {
		var req struct {
			Number      int       `json:"number"`
			StartsAt    time.Time `json:"starts_at"`
			EndsAt      time.Time `json:"ends_at"`
			DecayFactor float64   `json:"decay_factor"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		season, err := seasonService.CreateSeason(req.Number, req.StartsAt, req.EndsAt, req.DecayFactor)
		if err != nil {
			return fail(c, "failed to create season", err)
		}
		return c.Status(fiber.StatusCreated).JSON(season)
	})

	adminGroup.Post("/seasons/:id/end", func(c *fiber.Ctx) error {
		summary, err := seasonService.EndSeason(c.Params("id"))
		if err != nil {
			return fail(c, "failed to end season", err)
		}
		return c.JSON(summary)
	})

	adminGroup.Post("/seasons/:id/pause", func(c *fiber.Ctx) error {
		if err := seasonService.PauseSeason(c.Params("id")); err != nil {
			return fail(c, "failed to pause season", err)
		}
		return c.JSON(fiber.Map{"message": "season paused"})
	})

	adminGroup.Post("/seasons/:id/resume", func(c *fiber.Ctx) error {
		if err := seasonService.ResumeSeason(c.Params("id")); err != nil {
			return fail(c, "failed to resume season", err)
		}
		return c.JSON(fiber.Map{"message": "season resumed"})
	})

	adminGroup.Post("/seasons/:id/rewards", func(c *fiber.Ctx) error {
		rewarded, err := seasonService.AwardSeasonRewards(c.Params("id"))
		if err != nil {
			return fail(c, "failed to award season rewards", err)
		}
		return c.JSON(fiber.Map{"rewarded": rewarded})
	})

	// Catalog management: a new badge gets a slug code from its name and an
	// icon stored in R2.
	adminGroup.Post("/badges", func(c *fiber.Ctx) error {
		badge := models.BadgeType{
			Name:             c.FormValue("name"),
			Description:      c.FormValue("description"),
			Rarity:           c.FormValue("rarity", "common"),
			CriteriaType:     c.FormValue("criteria_type"),
			SpecialCondition: c.FormValue("special_condition"),
		}
		if badge.Name == "" || badge.CriteriaType == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and criteria_type are required"})
		}
		badge.Code = slug.Make(badge.Name)
		badge.BonusXP, _ = strconv.ParseInt(c.FormValue("bonus_xp", "0"), 10, 64)
		badge.CriteriaValue, _ = strconv.ParseFloat(c.FormValue("criteria_value", "0"), 64)
		badge.TimeframeDays, _ = strconv.Atoi(c.FormValue("timeframe_days", "0"))

		if icon, err := c.FormFile("icon"); err == nil {
			key := fmt.Sprintf("badges/%s%s", badge.Code, filepath.Ext(icon.Filename))
			url, err := utils.UploadBadgeIcon(icon, key)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "icon upload failed", "cause": err.Error()})
			}
			badge.IconURL = url
		}

		res := badgeService.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&badge)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create badge", "cause": res.Error.Error()})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "badge code already exists", "code": badge.Code})
		}
		return c.Status(fiber.StatusCreated).JSON(badge)
	})

	adminGroup.Post("/badges/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID    string `json:"user_id"`
			BadgeCode string `json:"badge_code"`
			Metadata  string `json:"metadata"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		fresh, err := badgeService.GrantSpecial(req.UserID, req.BadgeCode, req.Metadata)
		if err != nil {
			return fail(c, "failed to grant badge", err)
		}
		return c.JSON(fiber.Map{"granted": fresh})
	})

	adminGroup.Post("/reconcile", func(c *fiber.Ctx) error {
		drifted, err := xpService.ReconcileAll()
		if err != nil {
			return fail(c, "reconciliation failed", err)
		}
		return c.JSON(fiber.Map{"corrected": drifted})
	})
}
