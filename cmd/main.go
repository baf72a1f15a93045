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

	"github.com/weiawesome/wes-io-live/livestream-service/internal/archive"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/broadcast"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/cleanup"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/config"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/domain"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/generator"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/handler"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/hub"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/repository"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/service"
	"github.com/weiawesome/wes-io-live/livestream-service/internal/store"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/database"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/livestream-service/pkg/log"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/response"
	"github.com/weiawesome/wes-io-live/livestream-service/pkg/storage"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// 2. Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting livestream-service")

	// 3. Shared store
	redisStore, err := store.NewRedisStore(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create redis store")
	}
	defer redisStore.Close()
	keys := store.NewKeys(cfg.Redis.KeyPrefix)

	// 4. Event bus (own connection: a subscribed Redis connection cannot run other commands)
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create event bus")
	}
	defer bus.Close()

	// 5. Chat database
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db, &domain.ChatMessageModel{}, &domain.ProductMentionModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	// 6. Token verification
	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up token verification")
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	// 7. Repositories and service
	rooms := repository.NewRedisRoomStore(redisStore, keys, generator.NewULIDGenerator())
	registry := repository.NewRedisParticipantRegistry(redisStore, keys, cfg.Room.PresenceTTL)
	chat := repository.NewGormChatRepository(db)
	roomService := service.NewRoomService(rooms, registry, service.Config{
		WSEndpoint:    cfg.Room.WSEndpoint,
		ChannelPrefix: keys.Prefix(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. Hub and event fan-out
	h := hub.NewHub(cfg.WebSocket)
	go h.Run()

	dispatcher := broadcast.NewDispatcher(bus, h, keys.Prefix())
	relay := broadcast.NewRelay(bus, h, keys.Prefix())
	if err := relay.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start event relay")
	}

	// 9. Cleanup sweeper
	sweeper := cleanup.New(rooms, registry, cfg.Cleanup)
	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiveStorage, err := storage.New(ctx, cfg.Archive.Storage())
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Archive.Driver).Msg("failed to create archive storage")
		}
		archiver = archive.New(archiveStorage, chat)
		sweeper.SetArchiver(archiver)
		logger.Info().Str("driver", cfg.Archive.Driver).Msg("room archive enabled")
	}
	sweeper.Start(ctx)
	logger.Info().
		Dur("interval", cfg.Cleanup.Interval).
		Dur("ended_retention", cfg.Cleanup.EndedRetention).
		Dur("idle_timeout", cfg.Cleanup.IdleTimeout).
		Msg("sweeper started")

	// 10. Gin router + HTTP server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHandler(roomService, chat, dispatcher, authMiddleware).RegisterRoutes(r)
	handler.NewWSHandler(h, roomService, chat, dispatcher, authMiddleware, cfg.WebSocket).RegisterRoutes(r, cfg.Room.WSEndpoint)
	if archiver != nil {
		handler.NewArchiveHandler(archiver, authMiddleware).RegisterRoutes(r)
	}

	r.GET("/health", func(c *gin.Context) {
		if err := redisStore.Ping(c.Request.Context()); err != nil {
			response.Error(c, http.StatusServiceUnavailable, "UNHEALTHY", "store unreachable")
			return
		}
		response.Success(c, gin.H{
			"status":   "ok",
			"instance": cfg.Server.InstanceID,
			"clients":  h.ClientCount(),
		})
	})

	if manager, ok := verifier.(*jwt.Manager); ok {
		r.POST("/dev/token", devTokenHandler(manager))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("livestream-service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down livestream-service")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// 1. stop accepting HTTP and upgrades
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		// 2. close sockets; their presence is unregistered and broadcast
		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("timed out draining websocket clients")
		}

		// 3. stop the sweeper between passes
		sweeper.Stop()
		<-sweeper.Done()

		// 4. stop relaying bus events
		if err := relay.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to unsubscribe relay")
		}
		cancel()
		<-relay.Done()

		// 5. stop the hub loop
		h.Stop()
		<-h.Done()
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("livestream-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}

// newVerifier loads the auth service's public key. With dev tokens enabled
// and no key configured, an in-process key pair is used instead.
func newVerifier(cfg config.AuthConfig) (middleware.TokenVerifier, error) {
	if cfg.PublicKeyPath != "" {
		return jwt.NewVerifierFromFile(cfg.PublicKeyPath, cfg.Issuer)
	}
	if !cfg.DevTokens {
		return nil, fmt.Errorf("auth.public_key_path is required unless auth.dev_tokens is set")
	}

	manager, err := jwt.NewManager(24*time.Hour, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	l := pkglog.L()
	l.Warn().Msg("using an in-process signing key; tokens from the auth service will be rejected")
	return manager, nil
}

// devTokenHandler issues tokens signed by the in-process key.
func devTokenHandler(manager *jwt.Manager) gin.HandlerFunc {
	type request struct {
		UserID   int64  `json:"user_id" binding:"required,min=1"`
		Username string `json:"username"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		token, exp, err := manager.Issue(req.UserID, req.Username, nil)
		if err != nil {
			response.InternalError(c, "failed to issue token")
			return
		}
		response.Success(c, gin.H{"access_token": token, "expires_at": exp})
	}
}
