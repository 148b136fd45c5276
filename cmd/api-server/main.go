package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cinecircle/database"
	"cinecircle/internal/config"
	"cinecircle/internal/microservices/http-api/handler"
	"cinecircle/internal/microservices/http-api/middleware"
	"cinecircle/internal/microservices/http-api/repository"
	"cinecircle/internal/microservices/http-api/service"
	"cinecircle/internal/microservices/realtime"
	"cinecircle/internal/microservices/tcp"
	"cinecircle/internal/microservices/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server_exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to the database
	sqlDB, err := database.ConnectDB(cfg, logger)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	db, err := database.OpenGorm(sqlDB, cfg.IsDevelopment())
	if err != nil {
		return err
	}

	messageRepo, closeMessages, err := openMessageStore(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeMessages()

	// 3. Presence mirror is optional: without Redis the registry alone answers
	presenceStore, err := repository.NewPresenceRedisRepo(cfg.RedisURL, cfg.RedisPassword, cfg.PresenceTTL)
	if err != nil {
		logger.Warn("presence_mirror_disabled", "error", err)
		presenceStore = nil
	}
	defer presenceStore.Close()

	// 4. Real-time core
	registry := realtime.NewRegistry(logger)
	dispatcher := realtime.NewDispatcher(registry, logger)
	presence := realtime.NewPresence(registry, dispatcher, presenceStore, logger)

	tokens := service.NewTokenService(cfg.JWTSecret)
	users := repository.NewUserRepository(db)
	messages := service.NewMessageService(messageRepo, dispatcher, logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), users, dispatcher, logger)

	router := realtime.NewRouter(presence, dispatcher, messages, notifications, realtime.RouterOptions{
		RateLimit: cfg.ClientRateLimit,
		RateBurst: cfg.ClientRateBurst,
	}, logger)

	// 5. Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/check-conn", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":      "API is alive",
			"online_users": registry.OnlineCount(),
		})
	})

	auth := middleware.AuthMiddleware(tokens)
	r.GET("/ws", auth, websocket.WSHandler(ctx, router, websocket.HandlerOptions{
		AllowedOrigins: cfg.CORSOrigins,
		SendBuffer:     cfg.WSSendBuffer,
	}, logger))

	api := r.Group("/api", auth)
	handler.NewNotificationHandler(notifications).RegisterRoutes(api.Group("/notifications"))
	handler.NewActivityHandler(notifications).RegisterRoutes(api.Group("/activity"))
	handler.NewChatHandler(messages).RegisterRoutes(api.Group("/chat"))
	handler.NewPresenceHandler(presence, presenceStore).RegisterRoutes(api.Group("/users"))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. TCP transport shares the router with the websocket endpoint
	tcpServer := tcp.NewServer(fmt.Sprintf(":%d", cfg.TCPPort), router, tokens, cfg.WSSendBuffer, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_server_started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := tcpServer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("tcp server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err := <-errCh:
		logger.Error("server_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tcpServer.Stop()
	// hijacked websocket connections are not tracked by Shutdown
	registry.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("server_stopped")
	return nil
}

// openMessageStore picks the message repository from MESSAGE_STORE. The
// returned func releases whatever connection the store opened.
func openMessageStore(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) (repository.MessageRepository, func(), error) {
	if cfg.MessageStore != config.MessageStoreMongo {
		logger.Info("message_store_selected", "store", config.MessageStorePostgres)
		return repository.NewMessageRepository(db), func() {}, nil
	}

	client, mdb, err := database.ConnectMongo(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := repository.EnsureMessageIndexes(ctx, mdb); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to create message indexes: %w", err)
	}
	logger.Info("message_store_selected", "store", config.MessageStoreMongo)
	return repository.NewMongoMessageRepository(mdb), disconnect(client, logger), nil
}

func disconnect(client *mongo.Client, logger *slog.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Warn("mongo_disconnect_failed", "error", err)
		}
	}
}
