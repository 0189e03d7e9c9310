// Package store persists articles, quizzes and questions.
package store

import (
	"context"
	"errors"
	"fmt"

	"wiki-quiz/internal/database"
	"wiki-quiz/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateURL is returned when an article with the same URL already exists.
	ErrDuplicateURL = errors.New("article url already exists")
)

// QuestionInput is the data needed to persist one question.
type QuestionInput struct {
	Question    string
	Options     []string
	Answer      string
	Explanation string
	Difficulty  string
	Section     string
}

// ArticleStat summarises how much quiz data an article has.
type ArticleStat struct {
	ArticleID     uint
	Title         string
	QuizCount     int64
	QuestionCount int64
}

// Store provides access to the quiz tables through one gorm handle. Inside
// Transaction the handle is the transaction itself.
type Store struct {
	db *gorm.DB
}

// New wraps a connection pool.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn inside a database transaction. The store passed to fn is
// bound to that transaction; returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return database.Migrate(s.db.WithContext(ctx))
}

// FindArticleByURL returns the article stored for url.
func (s *Store) FindArticleByURL(ctx context.Context, url string) (*models.Article, error) {
	var article models.Article
	err := s.db.WithContext(ctx).Where("url = ?", url).First(&article).Error
	if err != nil {
		return nil, translate(err)
	}
	return &article, nil
}

// GetArticle returns the article with the given id.
func (s *Store) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := s.db.WithContext(ctx).First(&article, id).Error; err != nil {
		return nil, translate(err)
	}
	return &article, nil
}

// CreateArticle inserts article and fills in its id and creation time.
func (s *Store) CreateArticle(ctx context.Context, article *models.Article) error {
	if article.URL == "" {
		return fmt.Errorf("article url is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(article).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateURL
	}
	return err
}

// ListArticles returns every article, newest first.
func (s *Store) ListArticles(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	err := s.db.WithContext(ctx).
		Omit("raw_html").
		Order("created_at DESC").
		Order("id DESC").
		Find(&articles).Error
	return articles, err
}

// FindLatestQuiz returns the most recently created quiz of an article.
func (s *Store) FindLatestQuiz(ctx context.Context, articleID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := s.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("created_at DESC").
		Order("id DESC").
		First(&quiz).Error
	if err != nil {
		return nil, translate(err)
	}
	return &quiz, nil
}

// CreateQuiz inserts a quiz row for an article.
func (s *Store) CreateQuiz(ctx context.Context, articleID uint, relatedTopics []string) (*models.Quiz, error) {
	if relatedTopics == nil {
		relatedTopics = []string{}
	}
	quiz := &models.Quiz{
		ArticleID:     articleID,
		RelatedTopics: relatedTopics,
	}
	if err := s.db.WithContext(ctx).Create(quiz).Error; err != nil {
		return nil, err
	}
	return quiz, nil
}

// ListQuestions returns a quiz's questions in insertion order.
func (s *Store) ListQuestions(ctx context.Context, quizID uint) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("id ASC").
		Find(&questions).Error
	return questions, err
}

// CreateQuestions batch-inserts questions for a quiz. Every input must carry
// exactly four options.
func (s *Store) CreateQuestions(ctx context.Context, quizID uint, inputs []QuestionInput) ([]models.Question, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no questions to create")
	}

	questions := make([]models.Question, 0, len(inputs))
	for i, in := range inputs {
		opts, err := models.NewOptions(in.Options)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, models.Question{
			QuizID:       quizID,
			QuestionText: in.Question,
			Options:      datatypes.NewJSONType(opts),
			Answer:       in.Answer,
			Explanation:  in.Explanation,
			Difficulty:   in.Difficulty,
			Section:      in.Section,
		})
	}

	if err := s.db.WithContext(ctx).Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// DeleteArticle removes an article together with its quizzes and their questions.
func (s *Store) DeleteArticle(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var article models.Article
		if err := tx.Select("id").First(&article, id).Error; err != nil {
			return translate(err)
		}

		var quizIDs []uint
		if err := tx.Model(&models.Quiz{}).Where("article_id = ?", id).Pluck("id", &quizIDs).Error; err != nil {
			return fmt.Errorf("list quizzes: %w", err)
		}
		if len(quizIDs) > 0 {
			if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&models.Question{}).Error; err != nil {
				return fmt.Errorf("delete questions: %w", err)
			}
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Quiz{}).Error; err != nil {
			return fmt.Errorf("delete quizzes: %w", err)
		}
		if err := tx.Delete(&models.Article{}, id).Error; err != nil {
			return fmt.Errorf("delete article: %w", err)
		}
		return nil
	})
}

// ArticleStats returns quiz and question counts for every article, oldest first.
func (s *Store) ArticleStats(ctx context.Context) ([]ArticleStat, error) {
	var stats []ArticleStat
	err := s.db.WithContext(ctx).
		Table("articles").
		Select("articles.id AS article_id, articles.title AS title, " +
			"COUNT(DISTINCT quizzes.id) AS quiz_count, COUNT(questions.id) AS question_count").
		Joins("LEFT JOIN quizzes ON quizzes.article_id = articles.id").
		Joins("LEFT JOIN questions ON questions.quiz_id = quizzes.id").
		Group("articles.id, articles.title").
		Order("articles.id ASC").
		Scan(&stats).Error
	return stats, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
