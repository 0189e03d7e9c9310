package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"wiki-quiz/internal/apierr"
	"wiki-quiz/internal/database"
	"wiki-quiz/internal/logger"
	"wiki-quiz/internal/models"
	"wiki-quiz/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// QuizAPI is the part of services.QuizService the handlers call.
type QuizAPI interface {
	PreviewArticle(ctx context.Context, articleURL string) (*services.Preview, error)
	GenerateQuiz(ctx context.Context, articleURL string) (*services.QuizResponse, error)
	ListArticles(ctx context.Context) ([]models.Article, error)
	GetQuiz(ctx context.Context, articleID uint) (*services.QuizResponse, error)
	DeleteArticle(ctx context.Context, articleID uint) error
}

// QuizHandler handles HTTP requests for quizzes
type QuizHandler struct {
	quizzes QuizAPI
	db      *gorm.DB
	log     *logger.Logger
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(quizzes QuizAPI, db *gorm.DB, log *logger.Logger) *QuizHandler {
	return &QuizHandler{
		quizzes: quizzes,
		db:      db,
		log:     log,
	}
}

// PreviewArticle handles GET /preview-article?url=
func (h *QuizHandler) PreviewArticle(c *gin.Context) {
	preview, err := h.quizzes.PreviewArticle(c.Request.Context(), c.Query("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// GenerateQuiz handles POST /generate-quiz?url=
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	resp, err := h.quizzes.GenerateQuiz(c.Request.Context(), c.Query("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListQuizzes handles GET /quizzes. A storage fault yields an empty list.
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	articles, err := h.quizzes.ListArticles(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list articles", "error", err)
		articles = []models.Article{}
	}
	if articles == nil {
		articles = []models.Article{}
	}
	c.JSON(http.StatusOK, articles)
}

// GetQuiz handles GET /quiz/:article_id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	resp, err := h.quizzes.GetQuiz(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteQuiz handles DELETE /quiz/:article_id
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	if err := h.quizzes.DeleteArticle(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *QuizHandler) HealthCheck(c *gin.Context) {
	if err := database.Ping(h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "wiki-quiz",
			"detail":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "wiki-quiz",
	})
}

func articleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("article_id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apierr.New(http.StatusBadRequest, apierr.CodeInvalidID, errors.New("article_id must be a positive integer")))
		return 0, false
	}
	return uint(id), true
}

func respondError(c *gin.Context, err error) {
	e := apierr.As(err)
	_ = c.Error(err)
	c.JSON(apierr.StatusOf(err), gin.H{
		"error":  e.Code,
		"detail": e.Error(),
	})
}
