package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hayan9104/Shopify-Demo1/internal/cache"
	"github.com/hayan9104/Shopify-Demo1/internal/config"
	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/hayan9104/Shopify-Demo1/internal/events"
	"github.com/hayan9104/Shopify-Demo1/internal/poller"
	"github.com/hayan9104/Shopify-Demo1/internal/reconciler"
	"github.com/hayan9104/Shopify-Demo1/internal/repository"
	"github.com/hayan9104/Shopify-Demo1/internal/server"
	"github.com/hayan9104/Shopify-Demo1/internal/storefront"
	"github.com/hayan9104/Shopify-Demo1/internal/suggest"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	table, err := config.LoadGiftTable(cfg.GiftTablePath)
	if err != nil {
		log.Fatalf("Failed to load gift table: %v", err)
	}
	log.Printf("Loaded %d gifts, %d suggestions from %s", len(table.Gifts), len(table.Suggestions), cfg.GiftTablePath)

	// Set up MongoDB connection
	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	audit := repository.NewMongoRepository(mongoDB)
	if err := audit.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	snapshots := cache.NewRedisCache(redisClient)
	client := storefront.NewHTTPClient(cfg.StorefrontURL, table.Sections)
	bus := events.NewBus()

	rec := reconciler.New(client, table.Gifts, bus, audit, snapshots, cfg.SettleDelay)
	sug := suggest.NewService(client, snapshots, bus, table.Suggestions)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	// Debounced reconciliation trigger: every cart change except the ones
	// the reconciler caused itself.
	triggers, unsubscribe := bus.Subscribe(16, domain.SourceReconciler)
	defer unsubscribe()
	debouncer := events.NewDebouncer(cfg.DebounceDelay, func(ctx context.Context, _ domain.CartEvent) {
		if err := rec.Reconcile(ctx); err != nil {
			log.Printf("reconcile failed: %v", err)
		}
	})
	go debouncer.Run(workerCtx, triggers)

	// Webhook relay consumer
	relay := poller.NewPoller(bus, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
	go relay.Run(workerCtx)

	// Periodic resync safety net
	resync := poller.NewResync(cfg.ResyncInterval, rec)
	go resync.Run(workerCtx)

	handler := server.NewHandler(client, snapshots, bus, rec, sug, table.Gifts, cfg.RequestTimeout)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.NewRouter(handler),
	}

	go func() {
		log.Printf("Gift agent listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gift agent...")
	stopWorkers()
	relay.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	mongoDB.Client().Disconnect(shutdownCtx)
	log.Println("Gift agent stopped")
}
