package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wiki-quiz/internal/apierr"
	"wiki-quiz/internal/extractor"
	"wiki-quiz/internal/generator"
	"wiki-quiz/internal/logger"
	"wiki-quiz/internal/metrics"
	"wiki-quiz/internal/models"
	"wiki-quiz/internal/store"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// ArticleExtractor fetches and normalizes an article.
type ArticleExtractor interface {
	Extract(ctx context.Context, articleURL string) (*extractor.Document, error)
}

// QuizMaker produces a quiz from article text.
type QuizMaker interface {
	Generate(ctx context.Context, title, content string) (*generator.Result, error)
}

// QuizResponse is the payload returned for a generated or stored quiz.
type QuizResponse struct {
	ID            uint                      `json:"id"`
	URL           string                    `json:"url"`
	Title         string                    `json:"title"`
	Summary       string                    `json:"summary"`
	KeyEntities   models.Entities           `json:"key_entities"`
	Sections      []string                  `json:"sections"`
	Quiz          []generator.QuestionDraft `json:"quiz"`
	RelatedTopics []string                  `json:"related_topics"`
}

// Preview is the extraction-only view of an article.
type Preview struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// QuizService decides per request whether to serve a stored quiz or to
// extract, generate and persist a new one.
type QuizService struct {
	store     *store.Store
	extractor ArticleExtractor
	generator QuizMaker
	metrics   *metrics.Metrics
	log       *logger.Logger

	inflight singleflight.Group
}

// NewQuizService creates a new quiz service
func NewQuizService(st *store.Store, ex ArticleExtractor, gen QuizMaker, m *metrics.Metrics, log *logger.Logger) *QuizService {
	return &QuizService{
		store:     st,
		extractor: ex,
		generator: gen,
		metrics:   m,
		log:       log,
	}
}

// PreviewArticle runs only the extractor.
func (s *QuizService) PreviewArticle(ctx context.Context, articleURL string) (*Preview, error) {
	doc, err := s.extractor.Extract(ctx, articleURL)
	if err != nil {
		s.log.Warn("preview extraction failed", "url", articleURL, "error", err)
		return nil, extractionFault(ctx, "could not preview article, check the URL", err)
	}
	return &Preview{Title: doc.Title, Summary: doc.Summary}, nil
}

// GenerateQuiz returns the stored quiz for articleURL when one with questions
// exists, and otherwise scrapes the article, generates a quiz and stores it.
// Concurrent calls for the same URL share one execution.
func (s *QuizService) GenerateQuiz(ctx context.Context, articleURL string) (*QuizResponse, error) {
	articleURL = strings.TrimSpace(articleURL)
	if articleURL == "" {
		return nil, apierr.BadRequest(errors.New("url is required"))
	}

	// The shared run must outlive any single caller that joined it.
	ch := s.inflight.DoChan(articleURL, func() (interface{}, error) {
		return s.generateQuiz(context.WithoutCancel(ctx), articleURL)
	})

	select {
	case <-ctx.Done():
		s.log.Warn("quiz request abandoned by caller", "url", articleURL, "error", ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.log.Debug("joined in-flight quiz request", "url", articleURL)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*QuizResponse), nil
	}
}

func (s *QuizService) generateQuiz(ctx context.Context, articleURL string) (*QuizResponse, error) {
	log := s.log.With("url", articleURL)
	log.Info("new quiz request")

	article, cached, err := s.lookup(ctx, articleURL)
	if err != nil {
		// Treat as a miss; the schema may not exist yet.
		log.Warn("database lookup failed, initializing schema", "error", err)
		if migrateErr := s.store.Migrate(ctx); migrateErr != nil {
			log.Error("schema initialization failed", "error", migrateErr)
		}
	}
	if cached != nil {
		log.Info("returning cached quiz", "article_id", cached.ID, "questions", len(cached.Quiz))
		s.metrics.Outcome(metrics.OutcomeCacheHit)
		return cached, nil
	}

	start := time.Now()
	doc, err := s.extractor.Extract(ctx, articleURL)
	s.metrics.ObserveExtraction(start)
	if err != nil {
		log.Warn("scraping failed", "error", err)
		s.metrics.Outcome(metrics.OutcomeExtractionFailed)
		return nil, extractionFault(ctx, "failed to scrape Wikipedia article", err)
	}
	log.Info("scraping successful", "title", doc.Title)

	if article == nil {
		article, err = s.saveArticle(ctx, articleURL, doc)
		if err != nil {
			log.Error("database error while saving article", "error", err)
			s.metrics.Outcome(metrics.OutcomePersistFailed)
			return nil, apierr.Persistence(fmt.Errorf("database error while saving article: %w", err))
		}
		log.Info("article saved", "article_id", article.ID)
	} else {
		log.Info("using existing article for quiz generation", "article_id", article.ID)
	}

	start = time.Now()
	result, err := s.generator.Generate(ctx, doc.Title, doc.FullText)
	s.metrics.ObserveGeneration(start)
	if err == nil && (result == nil || len(result.Quiz) == 0) {
		err = generator.ErrEmptyQuiz
	}
	if err != nil {
		log.Error("quiz generation failed", "article_id", article.ID, "error", err)
		s.metrics.Outcome(metrics.OutcomeGenerationFailed)
		return nil, apierr.Upstream(fmt.Errorf("AI quiz generation failed: %w", err))
	}

	drafts := withDefaultSections(result.Quiz)
	topics := result.RelatedTopics
	if topics == nil {
		topics = []string{}
	}

	if err := s.saveQuiz(ctx, article.ID, topics, drafts); err != nil {
		log.Error("database error while saving quiz", "article_id", article.ID, "error", err)
		s.metrics.Outcome(metrics.OutcomePersistFailed)
		return nil, apierr.Persistence(fmt.Errorf("database error while saving quiz: %w", err))
	}
	log.Info("quiz and questions saved", "article_id", article.ID, "questions", len(drafts))
	s.metrics.Outcome(metrics.OutcomeGenerated)

	resp := articleResponse(article)
	resp.Quiz = drafts
	resp.RelatedTopics = topics
	return resp, nil
}

// lookup returns the stored article for the URL and, when its latest quiz has
// questions, the assembled cached response. The article is returned even when
// a later read fails.
func (s *QuizService) lookup(ctx context.Context, articleURL string) (*models.Article, *QuizResponse, error) {
	article, err := s.store.FindArticleByURL(ctx, articleURL)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	resp, err := s.assemble(ctx, article)
	if errors.Is(err, store.ErrNotFound) {
		return article, nil, nil
	}
	if err != nil {
		return article, nil, err
	}
	if len(resp.Quiz) == 0 {
		s.log.Info("existing quiz has no questions, regenerating", "article_id", article.ID)
		return article, nil, nil
	}
	return article, resp, nil
}

func (s *QuizService) saveArticle(ctx context.Context, articleURL string, doc *extractor.Document) (*models.Article, error) {
	article := &models.Article{
		URL:         articleURL,
		Title:       doc.Title,
		Summary:     doc.Summary,
		Sections:    doc.Sections,
		KeyEntities: datatypes.NewJSONType(doc.KeyEntities),
		RawHTML:     doc.RawHTML,
	}
	err := s.store.CreateArticle(ctx, article)
	if errors.Is(err, store.ErrDuplicateURL) {
		// Another request stored it first; use that row.
		return s.store.FindArticleByURL(ctx, articleURL)
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

func (s *QuizService) saveQuiz(ctx context.Context, articleID uint, topics []string, drafts []generator.QuestionDraft) error {
	inputs := make([]store.QuestionInput, len(drafts))
	for i, d := range drafts {
		inputs[i] = store.QuestionInput{
			Question:    d.Question,
			Options:     d.Options,
			Answer:      d.Answer,
			Explanation: d.Explanation,
			Difficulty:  d.Difficulty,
			Section:     d.Section,
		}
	}

	return s.store.Transaction(ctx, func(tx *store.Store) error {
		quiz, err := tx.CreateQuiz(ctx, articleID, topics)
		if err != nil {
			return err
		}
		_, err = tx.CreateQuestions(ctx, quiz.ID, inputs)
		return err
	})
}

// GetQuiz returns an article with its latest quiz.
func (s *QuizService) GetQuiz(ctx context.Context, articleID uint) (*QuizResponse, error) {
	article, err := s.store.GetArticle(ctx, articleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound(errors.New("article not found"))
	}
	if err != nil {
		return nil, err
	}

	resp, err := s.assemble(ctx, article)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound(errors.New("quiz not found"))
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListArticles returns every stored article, newest first.
func (s *QuizService) ListArticles(ctx context.Context) ([]models.Article, error) {
	return s.store.ListArticles(ctx)
}

// DeleteArticle removes an article with all of its quizzes and questions.
func (s *QuizService) DeleteArticle(ctx context.Context, articleID uint) error {
	err := s.store.DeleteArticle(ctx, articleID)
	if errors.Is(err, store.ErrNotFound) {
		return apierr.NotFound(errors.New("article not found"))
	}
	if err != nil {
		s.log.Error("failed to delete article", "article_id", articleID, "error", err)
		return apierr.Persistence(err)
	}
	s.log.Info("article deleted", "article_id", articleID)
	return nil
}

// assemble builds the response from the article's latest stored quiz.
func (s *QuizService) assemble(ctx context.Context, article *models.Article) (*QuizResponse, error) {
	quiz, err := s.store.FindLatestQuiz(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return nil, err
	}

	resp := articleResponse(article)
	resp.Quiz = make([]generator.QuestionDraft, len(questions))
	for i, q := range questions {
		resp.Quiz[i] = generator.QuestionDraft{
			Question:    q.QuestionText,
			Options:     q.Options.Data().Slice(),
			Answer:      q.Answer,
			Difficulty:  q.Difficulty,
			Explanation: q.Explanation,
			Section:     q.Section,
		}
	}
	resp.RelatedTopics = []string(quiz.RelatedTopics)
	if resp.RelatedTopics == nil {
		resp.RelatedTopics = []string{}
	}
	return resp, nil
}

func articleResponse(article *models.Article) *QuizResponse {
	sections := []string(article.Sections)
	if sections == nil {
		sections = []string{}
	}
	return &QuizResponse{
		ID:          article.ID,
		URL:         article.URL,
		Title:       article.Title,
		Summary:     article.Summary,
		KeyEntities: article.Entities(),
		Sections:    sections,
	}
}

// extractionFault reports a scrape failure as a client input fault, unless the
// request itself was cancelled or timed out.
func extractionFault(ctx context.Context, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w: %v", msg, ctxErr, err)
	}
	return apierr.BadRequest(fmt.Errorf("%s: %w", msg, err))
}

func withDefaultSections(drafts []generator.QuestionDraft) []generator.QuestionDraft {
	out := make([]generator.QuestionDraft, len(drafts))
	for i, d := range drafts {
		if strings.TrimSpace(d.Section) == "" {
			d.Section = models.DefaultSection
		}
		out[i] = d
	}
	return out
}
