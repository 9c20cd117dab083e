// Package main runs the merch admin HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/merchline/backend/config"
	"github.com/merchline/backend/internal/auditlog"
	"github.com/merchline/backend/internal/auth"
	"github.com/merchline/backend/internal/emaillogs"
	"github.com/merchline/backend/internal/middleware"
	"github.com/merchline/backend/internal/models"
	"github.com/merchline/backend/internal/orders"
	"github.com/merchline/backend/internal/payments"
	"github.com/merchline/backend/internal/permissions"
	"github.com/merchline/backend/internal/products"
	"github.com/merchline/backend/pkg/database"
	"github.com/merchline/backend/pkg/queue"
	"github.com/merchline/backend/pkg/redis"
	"github.com/merchline/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	checker := permissions.NewPGChecker(pool)
	audit := auditlog.NewPGWriter(pool, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Payments and refunds
	paymentRepo := payments.NewRepository(pool)
	refundService := payments.NewRefundService(paymentRepo, checker, audit, jobQueue, cfg.Refunds.ProcessingEstimate, logger)
	paymentHandler := payments.NewHandler(paymentRepo, refundService, jobQueue, audit, logger)

	// Orders
	orderRepo := orders.NewRepository(pool)
	orderHandler := orders.NewHandler(orderRepo, paymentRepo, audit, logger)

	// Products
	productRepo := products.NewRepository(pool)
	productHandler := products.NewHandler(productRepo, logger)

	// Audit + email logs
	auditHandler := auditlog.NewHandler(audit)
	emailLogRepo := emaillogs.NewRepository(pool)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, jobQueue, orderRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Products
		api.GET("/products", productHandler.List)
		api.GET("/products/:id", productHandler.GetByID)
		api.POST("/products", middleware.RequireCapabilities(checker, models.CapProductsUpdate), productHandler.Create)
		api.PATCH("/products/:id", middleware.RequireCapabilities(checker, models.CapProductsUpdate), productHandler.Update)
		api.POST("/products/:id/stock", middleware.RequireCapabilities(checker, models.CapProductsUpdate), productHandler.AdjustStock)

		// Orders
		api.GET("/orders", orderHandler.List)
		api.POST("/orders", middleware.RequireCapabilities(checker, models.CapOrdersUpdate), orderHandler.Create)
		api.GET("/orders/:id", orderHandler.GetByID)
		api.PATCH("/orders/:id/status", middleware.RequireCapabilities(checker, models.CapOrdersUpdate), orderHandler.UpdateStatus)
		api.POST("/orders/:id/notes", middleware.RequireCapabilities(checker, models.CapOrdersUpdate), orderHandler.AddNote)

		// Payments
		api.GET("/orders/:id/payments", paymentHandler.ListByOrder)
		api.POST("/orders/:id/payments", middleware.RequireCapabilities(checker, models.CapPaymentsUpdate), paymentHandler.Record)
		api.POST("/payments/:id/verify", middleware.RequireCapabilities(checker, models.CapPaymentsVerify), paymentHandler.Verify)
		api.POST("/payments/:id/decline", middleware.RequireCapabilities(checker, models.CapPaymentsVerify), paymentHandler.Decline)

		// Refunds (the service re-checks capabilities before any read)
		api.POST("/orders/:id/refund", paymentHandler.Refund)

		// Email logs
		api.GET("/orders/:id/emails", middleware.RequireRole("admin"), emailLogHandler.ListByOrder)
		api.POST("/orders/:id/emails/resend", middleware.RequireRole("admin"), emailLogHandler.Resend)

		// Audit trail
		api.GET("/audit-logs", middleware.RequireRole("admin"), auditHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
