// cmd/server/main.go
// HTTP Server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Fabricesimpore/Ecommerce-sub001/internal/client"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/config"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/gateway"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/handler"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/middleware"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/models"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/repository"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/service"
	"github.com/Fabricesimpore/Ecommerce-sub001/internal/webhook"
	"github.com/Fabricesimpore/Ecommerce-sub001/pkg/database"
	"github.com/Fabricesimpore/Ecommerce-sub001/pkg/logger"
	"github.com/Fabricesimpore/Ecommerce-sub001/pkg/redis"
)

func main() {
	// Initialize logger
	log := logger.NewLogger("payment-core")
	defer log.Sync()

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(models.PaymentSchema, models.AuditSchema); err != nil {
		log.Fatal("failed to apply schema", zap.Error(err))
	}

	// Initialize Redis
	redisClient := redis.NewRedisClient(cfg.Redis.Addr)
	defer redisClient.Close()

	// Initialize repositories and collaborators
	paymentRepo := repository.NewPaymentRepository(db.DB)
	orderClient := client.NewOrderClient(cfg.Orders)

	// Settlement gateways
	gateways := gateway.NewRegistry(
		gateway.NewOrangeMoneyGateway(cfg.Gateway.OrangeMoney, nil),
		gateway.NewBankTransferGateway(cfg.Gateway.BankTransfer),
		gateway.NewCashOnDeliveryGateway(),
	)

	// Initialize services
	scorer := service.NewFraudScorer(cfg.Fraud, log)
	replayCache := webhook.NewRedisReplayCache(redisClient, cfg.Webhook.ReplayTTL)
	verifier := webhook.NewVerifier(cfg.Webhook.Secret, paymentRepo, replayCache, log)
	paymentService := service.NewPaymentService(paymentRepo, orderClient, gateways, scorer, verifier, redisClient, cfg.Payment, log)

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(paymentService, log)
	webhookHandler := handler.NewWebhookHandler(paymentService, log)

	// Setup router
	router := setupRouter(paymentHandler, webhookHandler, db, cfg, log)

	// Background expiry sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go paymentService.RunExpirySweeper(sweepCtx, cfg.Payment.SweepInterval)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

func setupRouter(payments *handler.PaymentHandler, webhooks *handler.WebhookHandler, db *database.PostgresDB, cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	// Health checks
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")
	{
		p := v1.Group("/payments")
		{
			p.POST("", payments.Initiate)
			p.GET("/:reference", payments.Get)
			p.GET("/:reference/verify", payments.Verify)
			p.POST("/:reference/cancel", payments.Cancel)
			p.POST("/:reference/retry", payments.Retry)
		}

		v1.GET("/orders/:orderID/payments", payments.ListByOrder)

		// Provider callbacks: unauthenticated, signature-verified
		v1.POST("/webhooks/payment", webhooks.Receive)

		admin := v1.Group("/admin", middleware.AdminKey(cfg.Admin.APIKey))
		{
			admin.POST("/payments/:reference/refund", payments.Refund)
			admin.GET("/payments/:reference/audit", payments.AuditTrail)
			admin.GET("/payments/statistics", payments.Statistics)
			admin.POST("/payments/cleanup-expired", payments.CleanupExpired)
		}
	}

	return router
}
