package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"chatwire/config"
	"chatwire/db"
	"chatwire/handlers"
	"chatwire/middleware"
	"chatwire/services"
	"chatwire/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := utils.NewLogger()

	// Connect to database
	database, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	store := db.NewChatStore(database)

	// Initialize the coordination store. REDIS_URL=memory selects the
	// in-process coordinator for single-node development.
	var coord services.Coordinator
	if cfg.RedisURL == "memory" {
		coord = services.NewMemoryCoordinator(nil)
		logger.Warn("Using in-memory coordinator; cross-process fan-out is disabled")
	} else {
		redisClient, err := services.NewRedisClient(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		coord = services.NewRedisCoordinator(redisClient)
	}
	defer coord.Close()

	// Initialize realtime services
	hub := services.NewHub(logger)
	presence := services.NewPresenceService(coord, cfg, logger)
	limiter := services.NewRateLimiter(coord, logger)
	chat := services.NewChatEngine(store, presence, limiter, hub, cfg, logger)
	relay := services.NewGroupRelay(coord, store, presence, limiter, hub, cfg, logger)
	typing := services.NewTypingRelay(presence, hub, logger)
	gateway := services.NewGateway(hub, presence, chat, relay, typing, cfg, logger)

	auth := services.NewAuthService(store, cfg)
	otp := services.NewOTPService(coord, &services.LogSender{Logger: logger}, cfg, logger)

	// Start group fan-out subscription
	if err := relay.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start group relay", "error", err)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(otp, auth, limiter, store, cfg, logger)
	chatHandler := handlers.NewChatHandler(store, presence, logger)
	groupHandler := handlers.NewGroupHandler(store, logger)
	userHandler := handlers.NewUserHandler(store, presence, logger)
	wsHandler := handlers.NewWSHandler(gateway, auth, logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Websocket endpoint; the handler authenticates before upgrading
	router.GET("/ws", wsHandler.Serve)

	// API routes
	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/send-otp", authHandler.SendOTP)
			authRoutes.POST("/verify-otp", authHandler.VerifyOTP)
		}

		protected := api.Group("")
		protected.Use(middleware.Auth(auth))
		{
			chats := protected.Group("/chats")
			{
				chats.GET("/unread", chatHandler.GetUnreadCounts)
				chats.GET("/:userId", chatHandler.GetChatHistory)
				chats.PUT("/messages/:id/read", chatHandler.MarkAsRead)
			}

			groups := protected.Group("/groups")
			{
				groups.POST("", groupHandler.CreateGroup)
				groups.GET("", groupHandler.ListGroups)
				groups.GET("/:id/messages", groupHandler.GetGroupHistory)
				groups.POST("/:id/members", groupHandler.AddMember)
			}

			users := protected.Group("/users")
			{
				users.GET("", userHandler.ListUsers)
				users.GET("/online", userHandler.GetOnlineUsers)
				users.GET("/:id/status", userHandler.GetStatus)
			}
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting chatwire server", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop fan-out and close client connections
	relay.Stop()
	if err := hub.Shutdown(10 * time.Second); err != nil {
		logger.Warn("Hub shutdown incomplete", "error", err)
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
