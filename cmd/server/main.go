package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dropsync-service/config"
	"dropsync-service/internal/api"
	"dropsync-service/internal/broker"
	"dropsync-service/internal/marketplace"
	"dropsync-service/internal/redisclient"
	"dropsync-service/internal/scheduler"
	"dropsync-service/internal/service"
	"dropsync-service/internal/storefront"
	"dropsync-service/internal/store"
	"dropsync-service/internal/util"
	"dropsync-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting dropsync service")

	tp, err := util.InitTracer("dropsync-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSync)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	newMarketplace := func(creds marketplace.Credentials) service.MarketplaceAPI {
		return marketplace.NewGateway(marketplace.NewClient(cfg.Marketplace.APIURL, cfg.Marketplace.Timeout, creds))
	}
	newStorefront := func(accessToken string) service.StorefrontAPI {
		return storefront.NewClient(cfg.Storefront.BaseURL, cfg.Storefront.Timeout, accessToken)
	}

	syncService := service.NewSyncService(db, redisClient, eventPublisher, newMarketplace, newStorefront, service.SyncOptions{
		LeaseTTL:      cfg.Sync.LeaseTTL,
		StockCacheTTL: cfg.Sync.StockCacheTTL,
	})
	importService := service.NewImportService(db, newMarketplace, newStorefront, cfg.Sync.DefaultPriceMultiplier)
	orderService := service.NewOrderService(db, eventPublisher, newMarketplace, newStorefront)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	placementConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSync, cfg.Kafka.ConsumerGroup)
	placementWorker := worker.NewPlacementWorker(placementConsumer, orderService)
	go func() {
		if err := placementWorker.Start(workerCtx); err != nil {
			log.Printf("Placement worker error: %v", err)
		}
	}()

	syncScheduler := scheduler.New(syncService, cfg.Sync.InventoryInterval, cfg.Sync.TrackingInterval)
	syncScheduler.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(syncService, importService, orderService, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	placementWorker.Stop()

	log.Println("Server exited")
}
