package main

import (
	"context"
	"net/http"
	"time"

	"voicematch/backend/internal/api/handler"
	"voicematch/backend/internal/capability"
	"voicematch/backend/internal/config"
	"voicematch/backend/internal/models"
	"voicematch/backend/internal/moderator"
	"voicematch/backend/internal/registry"
	"voicematch/backend/internal/storage"
	"voicematch/backend/internal/voicehub"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: config.RedisAddr(),
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Room{},
		&models.User{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Info("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Info("Starting VoiceMatch Backend...")

	if err := godotenv.Load(); err != nil {
		log.Warn("Warning: Error loading .env file")
	}

	// 1. Dependencies and stores
	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)

	// 2. Core components
	reg := registry.NewService(s)
	reg.RecoverRooms() // sessions are ephemeral, close whatever a crash left behind

	relay := voicehub.NewRelay(reg)
	matcher := voicehub.NewMatcher(reg, s)
	hub := voicehub.NewHub(reg, relay, config.ConnectTimeout)

	// 3. Moderation orchestrator. Providers are consumed through narrow
	// capability interfaces; without one configured the moderator degrades
	// to its fallback utterances instead of failing rooms.
	orch := moderator.NewOrchestrator(
		relay,
		&capability.StorageProfiles{Storage: s},
		capability.Unconfigured{},
		capability.Unconfigured{},
		capability.Unconfigured{},
		moderator.Options{},
	)
	hub.SetModerator(orch)

	// 4. Background loops
	ctx := context.Background()
	go hub.Run(ctx)
	go moderator.NewScheduler(orch, config.TickInterval).Run(ctx)

	// 5. Gin routing
	r := gin.Default()
	h := handler.NewHandler(hub, matcher, reg, relay)

	r.GET("/anonid", h.GetAnonID)
	r.POST("/queue/join", h.JoinQueue)
	r.POST("/queue/leave", h.LeaveQueue)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/status", h.Status)

	server := &http.Server{
		Addr:           config.ListenAddr(),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
