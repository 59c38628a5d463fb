package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"deliberatelab/internal/cache"
	"deliberatelab/internal/config"
	"deliberatelab/internal/repository"
	"deliberatelab/internal/service"
	"deliberatelab/internal/sync"
	"deliberatelab/internal/transport/rest"
	"deliberatelab/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg := config.Load()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	// Ping MongoDB
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	// Ping Redis
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize repositories
	expRepo := repository.NewExperimentRepo(db)
	stageRepo := repository.NewStageRepo(db)
	answerRepo := repository.NewAnswerRepo(db)

	// Initialize caches
	expCache := cache.NewExperimentCache(rdb)
	answerCache := cache.NewAnswerCache(rdb)

	// Initialize services
	authSvc := service.NewAuthService(cfg.ExperimenterUsername, cfg.ExperimenterPassword, cfg.JWTSecret)
	expSvc := service.NewExperimentService(expRepo, stageRepo, answerRepo, expCache, answerCache)
	answerSvc := service.NewAnswerService(answerRepo, stageRepo, answerCache)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	expSvc.SetBroadcaster(wsHub)
	answerSvc.SetBroadcaster(wsHub)

	// Watches experiment and stage documents; feeds the experimenter live view
	watcher := sync.NewMongoWatcher(db)

	// Create router with container
	container := &rest.Container{
		AuthService:       authSvc,
		ExperimentService: expSvc,
		AnswerService:     answerSvc,
		WSHub:             wsHub,
		Watcher:           watcher,
	}

	router := rest.NewRouter(container)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Printf("Experimenter auth: username=%s", cfg.ExperimenterUsername)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST/GET /v1/experiments")
		log.Println("  POST/GET /v1/templates")
		log.Println("  POST /v1/experiments/{experimentId}/join")
		log.Println("  POST /v1/participant/stages/{stageId}/answer")
		log.Println("  GET  /v1/ws/experiments/{experimentId}/experimenter")
		log.Println("  GET  /v1/ws/experiments/{experimentId}/participant")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
