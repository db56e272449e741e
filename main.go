package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"community-engagement-system/handlers"
	"community-engagement-system/middleware"
	"community-engagement-system/models"
	"community-engagement-system/services"
	"community-engagement-system/utils"
	"community-engagement-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB — badge icons are the largest payload
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.XPLedgerEntry{},
		&models.StreakActivity{},
		&models.StreakDay{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.Season{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	userService := services.NewUserService(db)
	xpService := services.NewXPService(db)
	badgeService := services.NewBadgeService(db, xpService)
	xpService.Badges = badgeService
	streakService := services.NewStreakService(db)
	streakService.XP = xpService
	seasonService := services.NewSeasonService(db, xpService, badgeService)

	if err := badgeService.SeedCatalog(); err != nil {
		log.Fatal("failed to seed badge catalog:", err)
	}

	// Optional redis mirror for hot leaderboard reads.
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		seasonService.Cache = services.NewRankingsCache(
			redisAddr,
			os.Getenv("REDIS_PASSWORD"),
			0,
		)
		log.Printf("✅ Rankings cache enabled (%s)", redisAddr)
	}

	gatewayURL := os.Getenv("GATEWAY_SERVICE_URL")
	if gatewayURL == "" {
		log.Fatal("GATEWAY_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("ENGAGE_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("ENGAGE_SERVICE_TOKEN environment variable not set")
	}

	memberSync := workers.NewMemberSyncWorker(db, gatewayURL, "/api/v1/public/members", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memberSync.Start(ctx)
	go workers.PollReconciliation(ctx, xpService, 1*time.Hour)

	services.StartEngagementScheduler(streakService, seasonService)

	handlers.SetupEngagementRoutes(app, userService, streakService, xpService, badgeService, seasonService)
	handlers.SetupSeasonRoutes(app, seasonService, badgeService, xpService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Member Sync Worker running")
	log.Println("✅ Ledger reconciliation running (hourly)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
