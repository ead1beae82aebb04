package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kibetrono/slms/internal/config"
	"github.com/kibetrono/slms/internal/database"
	"github.com/kibetrono/slms/internal/database/queries"
	"github.com/kibetrono/slms/internal/handlers"
	"github.com/kibetrono/slms/internal/middleware"
	"github.com/kibetrono/slms/internal/services"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database connection
	db, err := database.New(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis connection
	redis, err := database.NewRedis(cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	// Initialize services
	store := queries.NewStore(db.Pool)
	policy := services.PolicyFromConfig(cfg.Circulation)

	fineService := services.NewFineService(store, policy)
	loanService := services.NewBorrowService(store, fineService, policy)
	reservationService := services.NewReservationService(store, loanService, policy)
	disposalService := services.NewDisposalService(store, redis, policy, logger)

	// Initialize Gin router
	r := gin.New()

	// Add global middleware
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.SecureJSON())
	r.Use(middleware.RequestID())

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(redis.Client)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redis)
	loanHandler := handlers.NewLoanHandler(loanService)
	fineHandler := handlers.NewFineHandler(fineService)
	reservationHandler := handlers.NewReservationHandler(reservationService)
	disposalHandler := handlers.NewDisposalHandler(disposalService)

	api := r.Group("/api/v1")
	api.Use(rateLimiter.APILimit())
	{
		api.GET("/ping", healthHandler.Ping)
		api.GET("/health", healthHandler.Health)

		// Borrow ledger routes
		loans := api.Group("/loans")
		{
			loans.POST("", loanHandler.Checkout)
			loans.GET("/overdue", loanHandler.ListOverdue)
			loans.GET("/:id", loanHandler.GetLoan)
			loans.POST("/:id/return", loanHandler.Return)
			loans.POST("/:id/renew", loanHandler.Renew)
			loans.POST("/:id/lost", loanHandler.MarkLost)
			loans.POST("/:id/damaged", loanHandler.MarkDamaged)
			loans.GET("/:id/fine", fineHandler.GetForLoan)
			loans.POST("/:id/fine/refresh", fineHandler.RefreshFine)
		}

		// Fine engine routes
		fines := api.Group("/fines")
		{
			fines.POST("/:id/payments", fineHandler.RecordPayment)
		}

		// Borrower-scoped queries
		borrowers := api.Group("/borrowers")
		{
			borrowers.GET("/:id/eligibility", loanHandler.CheckEligibility)
			borrowers.GET("/:id/fines", fineHandler.ListOutstanding)
		}

		// Reservation queue routes
		reservations := api.Group("/reservations")
		{
			reservations.POST("", reservationHandler.Reserve)
			reservations.POST("/expire", reservationHandler.ExpireReservations)
			reservations.GET("/:id", reservationHandler.GetReservation)
			reservations.POST("/:id/cancel", reservationHandler.Cancel)
			reservations.POST("/:id/fulfill", reservationHandler.Fulfill)
			reservations.POST("/:id/notify", reservationHandler.MarkNotified)
		}

		// Title-scoped queue queries
		books := api.Group("/books")
		{
			books.GET("/:id/reservations", reservationHandler.Queue)
			books.GET("/:id/reservations/next", reservationHandler.NextInQueue)
		}

		// Disposal scheduler routes
		disposals := api.Group("/disposals")
		{
			disposals.GET("/candidates", disposalHandler.Candidates)
			disposals.GET("/eligible-count", disposalHandler.EligibleCount)
			disposals.GET("/batches/:batch_id", disposalHandler.BatchRecords)

			// Batch runs get the tight limit
			disposals.POST("/batch", rateLimiter.BatchLimit(), disposalHandler.AutoDisposeBatch)
		}

		// Copy lifecycle
		copies := api.Group("/copies")
		{
			copies.POST("/:id/dispose", disposalHandler.ManualDispose)
			copies.POST("/:id/release", loanHandler.ReleaseCopy)
		}
	}

	// Root health check
	r.GET("/health", healthHandler.Health)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", port, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
