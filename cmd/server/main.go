package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/listening-room-system/config"
	"github.com/listening-room-system/internal/auth"
	"github.com/listening-room-system/internal/chat"
	"github.com/listening-room-system/internal/engagement"
	"github.com/listening-room-system/internal/playback"
	"github.com/listening-room-system/internal/playlist"
	"github.com/listening-room-system/internal/room"
	"github.com/listening-room-system/internal/ws"
	"github.com/listening-room-system/pkg/database"
	"github.com/listening-room-system/pkg/events"
	"github.com/listening-room-system/pkg/jwt"
	redisstore "github.com/listening-room-system/pkg/redis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	jwt.Init(cfg.JWT.Secret, cfg.JWT.TTL)

	db, err := database.NewMySQLDB(cfg.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}

	redisClient, err := redisstore.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	kafkaClient := events.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	defer kafkaClient.Close()

	// Ephemeral stores.
	queueStore := redisstore.NewQueueStore(redisClient)
	playbackStore := redisstore.NewPlaybackStore(redisClient)
	engagementStore := redisstore.NewEngagementStore(redisClient)
	rateLimiter := redisstore.NewRateLimiter(redisClient, cfg.Chat.RateLimitMax, cfg.Chat.RateLimitWindow)
	locker := redisstore.NewLocker(redisClient, cfg.Playback.LockTTL)

	// Services. The room service fronts membership checks so the playlist
	// path can answer room existence from the cache.
	roomService := room.NewService(db, redisClient, kafkaClient)
	playbackService := playback.NewService(queueStore, playbackStore, locker, kafkaClient)
	playlistService := playlist.NewService(queueStore, playbackStore, playbackService, engagementStore, roomService, kafkaClient)
	engagementService := engagement.NewService(queueStore, engagementStore, db, kafkaClient)
	chatService := chat.NewService(rateLimiter, db, kafkaClient, cfg.Chat.MaxContentLen)

	// Handlers.
	authHandler := auth.NewHandler(db)
	roomHandler := room.NewHandler(roomService)
	playlistHandler := playlist.NewHandler(playlistService)
	playbackHandler := playback.NewHandler(playbackService)
	engagementHandler := engagement.NewHandler(engagementService)
	chatHandler := chat.NewHandler(chatService)
	wsHandler := ws.NewHandler(kafkaClient, chatService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go wsHandler.Run(ctx)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", authHandler.Login)

		protected := v1.Group("")
		protected.Use(auth.Middleware())
		{
			protected.GET("/auth/me", authHandler.Me)

			protected.POST("/rooms", roomHandler.Create)
			protected.POST("/join", roomHandler.Join)
			protected.GET("/rooms/:roomId", roomHandler.Get)

			protected.POST("/rooms/:roomId/playlist", playlistHandler.Enqueue)
			protected.GET("/rooms/:roomId/playlist", playlistHandler.GetPlaylist)

			protected.POST("/rooms/:roomId/playback/next", playbackHandler.StartNext)
			protected.POST("/rooms/:roomId/playback/start/:itemId", playbackHandler.StartSpecific)
			protected.POST("/rooms/:roomId/playback/skip", playbackHandler.Skip)
			protected.POST("/rooms/:roomId/playback/stop", playbackHandler.Stop)
			protected.GET("/rooms/:roomId/playback", playbackHandler.GetState)

			protected.PUT("/rooms/:roomId/playlist/:itemId/engagement", engagementHandler.Set)
			protected.POST("/rooms/:roomId/playlist/:itemId/like", engagementHandler.Like)
			protected.POST("/rooms/:roomId/playlist/:itemId/dislike", engagementHandler.Dislike)
			protected.DELETE("/rooms/:roomId/playlist/:itemId/engagement", engagementHandler.Clear)
			protected.GET("/rooms/:roomId/playlist/:itemId/engagement", engagementHandler.Counts)
			protected.GET("/users/:userId/stats", engagementHandler.Stats)

			protected.POST("/rooms/:roomId/chat", chatHandler.Send)
			protected.GET("/rooms/:roomId/chat", chatHandler.History)

			protected.GET("/rooms/:roomId/ws", wsHandler.HandleWebSocket)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
