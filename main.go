// File: cabgo/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cabgo/config"
	"cabgo/cron"
	"cabgo/database"
	callsRepo "cabgo/database/repository/calls"
	"cabgo/handlers"
	"cabgo/middleware"
	"cabgo/models"
	"cabgo/routes"
	"cabgo/services/dialogue"
	"cabgo/services/dispatch"
	"cabgo/services/session"
	"cabgo/services/synthesis"
	"cabgo/services/transcription"
	"cabgo/services/voice"
	"cabgo/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitSessionCache()
	utils.StartHealthMonitor([]*redis.Client{utils.GetSessionCacheClient()}, database.MongoClient)

	ctx := context.Background()

	// Speech providers.
	recognizer, err := transcription.NewGoogleRecognizer(ctx, config.AppConfig.GoogleServiceAccountFile)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize speech recognizer: %v", err)
	}
	synthesizer, err := synthesis.NewGoogleSynthesizer(ctx, config.AppConfig.GoogleServiceAccountFile)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize speech synthesizer: %v", err)
	}
	speechCache := synthesis.NewCache(synthesizer)

	// Intent model.
	intents, err := dialogue.NewGeminiIntentClient(ctx, config.AppConfig.GeminiAPIKey)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize intent client: %v", err)
	}
	engine := dialogue.NewEngine(intents,
		time.Duration(config.AppConfig.IntentTimeoutMs)*time.Millisecond,
		config.AppConfig.UtteranceMaxWords)

	// Session store with outage reporting.
	storeErrs := make(chan error, 16)
	go func() {
		for err := range storeErrs {
			logger.Warn("session store degraded", zap.Error(err))
		}
	}()
	store := session.NewRedisStore(
		utils.GetSessionCacheClient(),
		time.Duration(config.AppConfig.SessionTTLMinutes)*time.Minute,
		config.AppConfig.MaxActiveSessions,
		storeErrs,
	)

	dispatcher := dispatch.NewHTTPDispatcher(
		config.AppConfig.DispatchURL,
		time.Duration(config.AppConfig.DispatchTimeoutMs)*time.Millisecond,
	)

	// Call archive: worker consumes, the bridges enqueue.
	callRepo := callsRepo.NewMongoCallRepo()
	recordQueue := cron.NewCallRecordQueue()
	cron.InitCallRecordWorker(callRepo, store)

	defaultLang := models.Language(config.AppConfig.DefaultLanguage)
	if defaultLang == "" {
		defaultLang = models.LangEnglish
	}

	// Render the fixed phrases up front so the first caller hears the
	// greeting without a provider round trip.
	for _, lang := range []models.Language{defaultLang, models.LangEnglish} {
		speechCache.Prewarm(ctx, lang, voice.PrewarmSet(lang))
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		Store:           store,
		Engine:          engine,
		Recognizer:      recognizer,
		Speaker:         speechCache,
		Dispatcher:      dispatcher,
		Records:         recordQueue,
		DefaultLang:     defaultLang,
		SpeakTimeout:    time.Duration(config.AppConfig.SynthesisTimeoutMs) * time.Millisecond,
		CompletionGrace: time.Duration(config.AppConfig.CompletionGraceSecs) * time.Second,
	}
	handlerBundle.Wire()

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	if err := recognizer.Close(); err != nil {
		logger.Warn("recognizer close failed", zap.Error(err))
	}
	if err := synthesizer.Close(); err != nil {
		logger.Warn("synthesizer close failed", zap.Error(err))
	}
	if err := intents.Close(); err != nil {
		logger.Warn("intent client close failed", zap.Error(err))
	}
	if err := recordQueue.Close(); err != nil {
		logger.Warn("record queue close failed", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
