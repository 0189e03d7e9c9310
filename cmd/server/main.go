package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wiki-quiz/internal/config"
	"wiki-quiz/internal/database"
	"wiki-quiz/internal/extractor"
	"wiki-quiz/internal/generator"
	"wiki-quiz/internal/handlers"
	"wiki-quiz/internal/logger"
	"wiki-quiz/internal/metrics"
	"wiki-quiz/internal/server"
	"wiki-quiz/internal/services"
	"wiki-quiz/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logg.Sync()

	db, err := database.Connect(&database.Config{URL: cfg.DatabaseURL, LogLevel: cfg.DBLogLevel})
	if err != nil {
		logg.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close(db)

	// A failed migration is not fatal; the first request retries it.
	if err := database.Migrate(db); err != nil {
		logg.Warn("Failed to run migrations", "error", err)
	}

	if cfg.GoogleAPIKey == "" {
		logg.Warn("GOOGLE_API_KEY is not set, quiz generation will fail")
	}

	m := metrics.New()
	llm := generator.NewGeminiClient(cfg.GeminiBaseURL, cfg.GoogleAPIKey, cfg.GeminiModel)
	quizService := services.NewQuizService(
		store.New(db),
		extractor.NewExtractor(cfg.ScrapeTimeoutDuration()),
		generator.NewQuizGenerator(llm, logg),
		m,
		logg,
	)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	router := server.NewRouter(server.RouterConfig{
		QuizHandler: handlers.NewQuizHandler(quizService, db, logg),
		DocsHandler: handlers.NewDocsHandler(),
		Metrics:     m,
		Logger:      logg,
		CORSOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logg.Info("Server starting", "port", cfg.Port, "model", llm.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	logg.Info("Received shutdown signal, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("Server shutdown failed", "error", err)
	}
	logg.Info("Shutdown complete")
}
