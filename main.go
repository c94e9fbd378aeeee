package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketchat/backend/internal/api"
	"marketchat/backend/internal/broadcast"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/repository"
	"marketchat/backend/internal/service"
	"marketchat/backend/internal/storage"
	"marketchat/backend/internal/ws"
	"marketchat/backend/pkg/config"
	"marketchat/backend/pkg/logger"
	"marketchat/backend/pkg/router"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.New()

	log := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})
	logger.SetGlobal(log)

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "database connection failed")
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.ChatRoom{},
		&models.ChatMessage{},
	); err != nil {
		log.LogError(err, "database migration failed")
		os.Exit(1)
	}

	store, err := newStorage(cfg)
	if err != nil {
		log.LogError(err, "storage backend init failed", "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	hub := broadcast.NewHub(log)
	var broadcaster broadcast.Broadcaster = hub
	var redisBroadcaster *broadcast.RedisBroadcaster
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisBroadcaster = broadcast.NewRedisBroadcaster(rdb, hub, log)
		redisBroadcaster.Start()
		broadcaster = redisBroadcaster
	}

	userRepo := repository.NewGormUserRepository(db)
	postRepo := repository.NewGormPostRepository(db)
	roomRepo := repository.NewGormRoomRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	chatService := service.NewChatService(roomRepo, messageRepo, userRepo, postRepo, store, broadcaster, log)
	userService := service.NewUserService(userRepo)
	postService := service.NewPostService(postRepo, roomRepo)

	engine := router.New(router.Options{
		Logger: log,
		Config: cfg,
		Chat:   api.NewChatHandler(chatService),
		Users:  api.NewUserHandler(userService),
		Posts:  api.NewPostHandler(postService),
		Files:  api.NewFileHandler(store),
		WS:     ws.NewHandler(hub, chatService, log),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if redisBroadcaster != nil {
		redisBroadcaster.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.LogError(err, "forced shutdown")
		os.Exit(1)
	}
	log.Info("server stopped")
}

// newStorage selects the blob store for chat images
func newStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Backend == "s3" {
		return storage.NewS3Storage(context.Background(), storage.S3Config{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			BaseURL:   cfg.Storage.BaseURL,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
	}
	return storage.NewLocalStorage(cfg.Storage.LocalPath, cfg.Storage.LocalURL)
}
