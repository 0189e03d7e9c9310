// Package server assembles the gin engine.
package server

import (
	"wiki-quiz/internal/handlers"
	"wiki-quiz/internal/logger"
	"wiki-quiz/internal/metrics"
	"wiki-quiz/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the handlers and collaborators the router wires.
type RouterConfig struct {
	QuizHandler *handlers.QuizHandler
	DocsHandler *handlers.DocsHandler
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
	CORSOrigins []string
}

// NewRouter builds the engine with middleware and every route registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Logger),
		middleware.Metrics(cfg.Metrics),
		middleware.CORS(cfg.CORSOrigins),
	)

	// Operations
	router.GET("/health", cfg.QuizHandler.HealthCheck)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	if cfg.DocsHandler != nil {
		router.GET("/docs", cfg.DocsHandler.ServeAPIDocs)
	}

	// Quiz API
	router.GET("/preview-article", cfg.QuizHandler.PreviewArticle)
	router.POST("/generate-quiz", cfg.QuizHandler.GenerateQuiz)
	router.GET("/quizzes", cfg.QuizHandler.ListQuizzes)
	router.GET("/quiz/:article_id", cfg.QuizHandler.GetQuiz)
	router.DELETE("/quiz/:article_id", cfg.QuizHandler.DeleteQuiz)

	return router
}
