package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delivery-backend/internal/config"
	"delivery-backend/internal/db"
	"delivery-backend/internal/events"
	"delivery-backend/internal/logger"
	"delivery-backend/internal/middleware"
	"delivery-backend/internal/routes"
	"delivery-backend/internal/services"
	"delivery-backend/internal/utils"
	"delivery-backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		panic(err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := utils.RegisterValidators(); err != nil {
		log.Fatal("failed to register validators", zap.Error(err))
	}

	database, err := db.Connect(cfg.Database, log, 5, 5*time.Second)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.Migrate(database); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := websocket.NewHub(log.Named("realtime"))
	go hub.Run(ctx)

	var realtime services.Publisher = hub
	var notifier services.RiderNotifier

	if cfg.Redis.Enabled() {
		redisClient, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, realtime stays local to this instance", zap.Error(err))
		} else {
			defer redisClient.Close()
			relay := websocket.NewRedisRelay(redisClient, cfg.RealtimeChannel, hub, log.Named("relay"))
			go relay.Run(ctx)
			realtime = relay
			if cfg.WhatsApp.Enabled() {
				notifier = services.NewWhatsAppService(cfg.WhatsApp, redisClient, log.Named("whatsapp"))
			}
		}
	}
	if notifier == nil && cfg.WhatsApp.Enabled() {
		notifier = services.NewWhatsAppService(cfg.WhatsApp, nil, log.Named("whatsapp"))
	}

	var domainEvents services.Publisher = services.NopPublisher
	if cfg.RabbitMQ.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log.Named("events"))
		if err != nil {
			log.Warn("rabbitmq unavailable, domain events disabled", zap.Error(err))
		} else {
			defer amqpPublisher.Close()
			go amqpPublisher.Run(ctx)
			domainEvents = amqpPublisher
		}
	}

	deliveries := services.NewDeliveryService(database, domainEvents, log.Named("delivery"))
	tracking := services.NewTrackingService(database, cfg.PublicBaseURL, notifier, domainEvents, log.Named("tracking"))
	svc := routes.Services{
		Riders:     services.NewRiderService(database, log.Named("rider")),
		Deliveries: deliveries,
		Tracking:   tracking,
		Locations:  services.NewLocationService(database, tracking, realtime, domainEvents, log.Named("location")),
		Orders:     services.NewOrderService(database, deliveries, realtime, domainEvents, log.Named("order")),
	}

	r := gin.New()
	r.Use(logger.RequestID())
	r.Use(logger.GinMiddleware(log))
	r.Use(logger.Recovery(log))
	r.Use(middleware.PrometheusMiddleware())
	r.SetTrustedProxies([]string{"127.0.0.1"})
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	identity := middleware.Identity(cfg.JWT.Secret)
	api := r.Group("/api", identity)
	routes.SetupRoutes(api, svc)

	r.GET("/ws", identity, middleware.RequireAdmin(), hub.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, closing connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	stop()

	log.Info("server stopped")
}
