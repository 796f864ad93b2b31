package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pong-platform/game"
	"pong-platform/handlers"
	"pong-platform/models"
	"pong-platform/services"
	"pong-platform/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL environment variable not set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}

	// TranslateError turns driver unique violations into
	// gorm.ErrDuplicatedKey — the services layer depends on it for the
	// bracket generate-once guard.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := db.AutoMigrate(
		&models.Player{},
		&models.Tournament{},
		&models.TournamentPlayer{},
		&models.Match{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("invalid REDIS_URL:", err)
	}
	rdb := redis.NewClient(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	playerService := services.NewPlayerService(db)
	tournamentService := services.NewTournamentService(db)

	registry := game.NewRegistry()
	registry.SetFinishHandler(func(s *game.Session, snap game.Snapshot) {
		left, right, known := s.Players()
		switch {
		case s.TournamentID != "":
			if err := tournamentService.RecordResult(s.ID, left, right, snap.ScoreLeft, snap.ScoreRight); err != nil {
				log.Printf("❌ recording tournament result for session %s: %v", s.ID, err)
			}
		case known:
			if err := tournamentService.RecordCasual(s.ID, left, right, snap.ScoreLeft, snap.ScoreRight); err != nil {
				log.Printf("❌ recording casual result for session %s: %v", s.ID, err)
			}
		}
	})

	consumer := workers.NewUserEventConsumer(rdb, playerService,
		envOr("USER_EVENT_STREAM", "user-events"),
		envOr("USER_EVENT_GROUP", "pong-platform"),
		envOr("USER_EVENT_CONSUMER", "pong-platform-1"))
	go consumer.Start(ctx)

	reaper, err := workers.StartSessionReaper(registry, 30*time.Second, 5*time.Minute)
	if err != nil {
		log.Fatal("failed to start session reaper:", err)
	}

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, X-User-ID, X-User-Name",
		AllowCredentials: true,
	}))

	handlers.SetupSessionRoutes(app, registry)
	handlers.SetupWebsocketRoutes(app, registry)
	handlers.SetupTournamentRoutes(app, tournamentService, playerService)

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ User event consumer running")
	log.Println("✅ Session reaper running (every 30s)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = reaper.Shutdown()
	if err := app.Shutdown(); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
