package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/dkemsley/payoutsync-api/internal/config"
	"github.com/dkemsley/payoutsync-api/internal/database"
	"github.com/dkemsley/payoutsync-api/internal/handlers"
	"github.com/dkemsley/payoutsync-api/internal/logger"
	"github.com/dkemsley/payoutsync-api/internal/middleware"
	"github.com/dkemsley/payoutsync-api/internal/models"
	"github.com/dkemsley/payoutsync-api/internal/services"
	"github.com/dkemsley/payoutsync-api/internal/store"
	"github.com/dkemsley/payoutsync-api/internal/stripe"
	"github.com/dkemsley/payoutsync-api/internal/utils"
	"github.com/dkemsley/payoutsync-api/internal/xero"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logg := logger.New(cfg.Environment)

	// Connect to database
	pool, err := database.ConnectURL(cfg.DatabaseURL)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	db := store.New(pool)
	if err := db.Migrate(context.Background()); err != nil {
		logg.Fatal().Err(err).Msg("failed to bootstrap schema")
	}
	logg.Info().Msg("connected to database")

	// Payment processor client
	processor := stripe.NewClient(cfg.StripeSecretKey)

	// Ledger platform client, token persistence backed by the store
	auth := xero.NewAuthenticator(cfg.XeroClientID, cfg.XeroClientSecret, cfg.XeroRedirectURI, db)
	ledger := xero.NewClient(auth)

	// Review report archive; optional outside production
	var (
		archive services.ReportArchive
		reports handlers.ReportStore
	)
	if cfg.S3Bucket != "" {
		archiveService, err := services.NewArchiveService(cfg.S3Bucket, cfg.S3Region, cfg.AWSEndpoint)
		if err != nil {
			logg.Fatal().Err(err).Msg("failed to initialize report archive")
		}
		archive = archiveService
		reports = archiveService
		logg.Info().Str("bucket", cfg.S3Bucket).Msg("report archive initialized")
	} else {
		logg.Warn().Msg("S3_BUCKET not set, review reports will not be archived")
	}

	reconciler := services.NewPayoutReconciler(
		processor,
		ledger,
		db,
		services.NewReconciliationReport(),
		archive,
		services.ReconcilerConfig{
			ContactRef:        cfg.XeroContactID,
			DueDateOffsetDays: cfg.InvoiceDueDays,
			Codes: models.AccountCodes{
				Fee:              cfg.FeeAccountCode,
				DiscountDeferral: cfg.DiscountDeferralCode,
				DiscountStandard: cfg.DiscountStandardCode,
			},
		},
		logg,
	)
	logg.Info().Msg("payout reconciler initialized")

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(cfg.StripeWebhookSecret, reconciler, logg)
	reconcileHandler := handlers.NewReconcileHandler(reconciler, db, reports, logg)
	connectHandler := handlers.NewConnectHandler(auth, ledger, logg)

	app := fiber.New(fiber.Config{
		AppName:      "payoutsync API v1.0",
		ErrorHandler: utils.ErrorHandler,
	})

	// Apply global middleware
	app.Use(middleware.CORS())

	// Health check endpoint (public)
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "payoutsync-api",
		})
	})

	// API v1 routes
	v1 := app.Group("/v1")

	// Processor webhook (verified by signature, not by bearer token)
	v1.Post("/webhooks/stripe", webhookHandler.HandleStripe)

	// Ledger authorization flow (browser-driven, one-time)
	v1.Get("/xero/connect", connectHandler.Connect)
	v1.Get("/xero/callback", connectHandler.Callback)

	// Operator routes (require authentication)
	protected := v1.Group("", middleware.ClerkAuth())
	protected.Post("/reconcile/:payoutID", reconcileHandler.TriggerRun)
	protected.Get("/runs", reconcileHandler.ListRuns)
	protected.Get("/runs/:id", reconcileHandler.GetRun)
	protected.Get("/runs/:id/report", reconcileHandler.GetRunReport)

	logg.Info().Int("port", cfg.Port).Msg("payoutsync API is running")
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logg.Fatal().Err(err).Msg("server stopped")
	}
}
