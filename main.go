package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quest-reward-system/handlers"
	"quest-reward-system/middleware"
	"quest-reward-system/models"
	"quest-reward-system/services"
	"quest-reward-system/storage"
	"quest-reward-system/utils"
	"quest-reward-system/workers"

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
		BodyLimit: 5 * 1024 * 1024, // 5MB, JSON API only
	})

	// 🔐 GLOBAL: Only Gateway requests allowed, no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token, X-User-ID, X-Wallet-Address",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// --- Storage backend selection ---
	// DATABASE_URL present: relational backend with the uniqueness and
	// transaction guarantees enforced by Postgres. Absent: volatile
	// in-process backend for local development, state dies with the process.
	var store storage.Store
	var db *gorm.DB

	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database:", err)
		}

		if err := db.AutoMigrate(
			&models.User{},
			&models.UserProfile{},
			&models.CompletionRecord{},
			&models.MintRecord{},
			&models.SessionToken{},
			&models.OAuthAccount{},
			&models.Quest{},
			&models.DailyTask{},
			&models.Campaign{},
			&models.CampaignTask{},
		); err != nil {
			log.Fatal("failed to migrate database:", err)
		}
		store = storage.NewPostgres(db)
	} else {
		log.Println("⚠️  DATABASE_URL not set — using the volatile in-memory store")
		store = storage.NewMemory()
	}

	// --- Optional R2 (NFT metadata uploads) ---
	var upload workers.MetadataUploadFunc
	if os.Getenv("CLOUDFLARE_ACCOUNT_ID") != "" {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		upload = utils.UploadJSONToR2
	} else {
		log.Println("⚠️  R2 not configured — mint jobs will carry no metadata_uri")
	}

	catalogService := services.NewCatalogService(db)
	if err := catalogService.Load(); err != nil {
		log.Fatal("failed to load catalog:", err)
	}

	hub := services.NewEventHub()
	relayer := utils.NewRelayerClientFromEnv()
	mintWorker := workers.NewMintWorker(store, hub, relayer, upload)

	userService := services.NewUserService(store)
	ledgerService := services.NewLedgerService(store, catalogService, mintWorker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go mintWorker.Start(ctx)
	workers.StartMintReconciler(store, 1*time.Minute, 10*time.Minute)

	handlers.SetupAuthRoutes(app, userService)
	handlers.SetupClaimRoutes(app, ledgerService, userService, hub)
	handlers.SetupCatalogRoutes(app, catalogService, userService, store, mintWorker)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Mint worker running (single consumer)")
	log.Println("✅ Mint reconciler running (every 1m, stale after 10m)")
	if relayer.Configured() {
		log.Println("✅ Mint relayer configured")
	} else {
		log.Println("⚠️  Mint relayer not configured — level-up jobs park as pending_offchain")
	}
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
