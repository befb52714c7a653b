package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/api"
	"tutorgate-backend-go/internal/cache"
	"tutorgate-backend-go/internal/config"
	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/db"
	"tutorgate-backend-go/internal/messagequeue"
	"tutorgate-backend-go/internal/middleware"
	"tutorgate-backend-go/internal/providers"
)

func main() {
	// .env is a development convenience; production sets the environment directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
	}

	// --- 1. Logger ---
	var (
		zapLogger *zap.Logger
		err       error
	)
	if os.Getenv("GIN_MODE") == "release" {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	// --- 3. Firebase (Firestore + Auth) ---
	clients, err := db.InitFirebase(initCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	defer clients.Close()

	// --- 4. Hot cache ---
	var hotCache cache.Cache
	switch appConfig.CacheBackend {
	case "memory":
		hotCache = cache.NewMemoryCache(time.Minute)
		zapLogger.Warn("Using in-process memory cache; quota counters are not shared between instances")
	default:
		hotCache, err = cache.NewRedisCache(initCtx, cache.RedisConfig{
			Address:  appConfig.RedisAddress,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
	}
	defer hotCache.Close()

	// --- 5. Providers ---
	table, err := providers.LoadTable(appConfig.ProvidersFile)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load provider table", zap.String("path", appConfig.ProvidersFile), zap.Error(err))
	}
	registry, err := providers.NewRegistry(initCtx, table, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to build provider registry", zap.Error(err))
	}
	defer registry.Close()

	// --- 6. Response persistence ---
	store, closeStore, err := buildResponseStore(appConfig, clients, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to set up response persistence", zap.Error(err))
	}
	defer closeStore()
	recorder := core.NewResponseRecorder(store, core.RecorderConfig{
		Workers: appConfig.RecorderWorkers,
		Buffer:  appConfig.RecorderBuffer,
	}, zapLogger)

	// --- 7. Services ---
	profileRepo := db.NewFirestoreProfileRepository(clients.Firestore)
	gatekeeper := core.NewGatekeeper(hotCache, profileRepo, core.GatekeeperConfig{
		CacheTTL:     appConfig.ProfileCacheTTL,
		DefaultQuota: appConfig.DefaultDailyQuota,
	}, zapLogger)
	quota := core.NewQuotaAccountant(hotCache, appConfig.QuotaLocation(), appConfig.DefaultDailyQuota, zapLogger)
	orchestrator := core.NewOrchestrator(registry, recorder, core.OrchestratorConfig{}, zapLogger)
	turnService := core.NewTurnService(gatekeeper, quota, orchestrator, zapLogger)
	userService := core.NewUserService(profileRepo, gatekeeper, zapLogger)

	// --- 8. HTTP ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured")
	}

	api.SetupRoutes(router, appConfig, zapLogger, clients.Auth, gatekeeper, turnService, userService, table)

	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	zapLogger.Info("Starting HTTP server", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 9. Graceful shutdown ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Graceful shutdown did not complete", zap.Error(err))
	}

	// Open streams have ended; flush what they handed to the recorder.
	recorder.Close()
	zapLogger.Info("Server exiting gracefully.")
}

// buildResponseStore wires PERSIST_BACKEND to Firestore, RabbitMQ or both.
func buildResponseStore(cfg *config.Config, clients *db.Clients, logger *zap.Logger) (core.ResponseStore, func(), error) {
	var stores core.MultiStore
	closeFn := func() {}

	if cfg.PersistBackend == "firestore" || cfg.PersistBackend == "both" {
		stores = append(stores, db.NewFirestoreResponseRepository(clients.Firestore))
	}
	if cfg.PersistBackend == "amqp" || cfg.PersistBackend == "both" {
		publisher, err := messagequeue.NewRabbitMQPublisher(messagequeue.RabbitMQConfig{URL: cfg.RabbitMQURL}, logger)
		if err != nil {
			return nil, nil, err
		}
		stores = append(stores, messagequeue.NewResponsePublisher(publisher, cfg.RabbitMQQueue))
		closeFn = func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close RabbitMQ publisher", zap.Error(err))
			}
		}
	}
	if len(stores) == 1 {
		return stores[0], closeFn, nil
	}
	return stores, closeFn, nil
}
