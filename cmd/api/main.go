package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/cache"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/database"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/email"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/handlers"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/routes"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// 1. --- Database Connection ---
	db, err := database.OpenDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 2. --- Redis Cache ---
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	cacheService, err := cache.New(redisAddr, logger)
	if err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", redisAddr, err)
	}
	defer cacheService.Close()

	// 3. --- Async Mailer ---
	mailer := email.NewMailer(email.Config{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}, logger)
	mailer.Start()
	defer mailer.Close()

	// --- Application Setup ---
	// Inject ALL dependencies into the Handlers struct.
	shippingRate, _ := strconv.ParseFloat(os.Getenv("SHIPPING_FLAT_RATE"), 64)
	app := &handlers.Handlers{
		DB:               db,
		Cache:            cacheService,
		Mailer:           mailer,
		Logger:           logger,
		ShippingFlatRate: shippingRate,
	}

	// 4. --- Background Worker (Cron) ---
	// Runs hourly: sweeps expired coupons and re-accrues any affiliate
	// commission that was lost between order commit and async accrual.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		logger.Info().Msg("background worker started: coupon expiry + affiliate reconciliation")

		for range ticker.C {
			app.DeactivateExpiredCoupons()
			app.ReconcileAffiliateAccruals()
		}
	}()

	// --- Router Setup ---
	router := routes.SetupRouter(app)

	// --- Start Server ---
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting bookstore API server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
