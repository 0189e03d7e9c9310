package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"wiki-quiz/internal/apierr"
	"wiki-quiz/internal/database"
	"wiki-quiz/internal/extractor"
	"wiki-quiz/internal/generator"
	"wiki-quiz/internal/logger"
	"wiki-quiz/internal/metrics"
	"wiki-quiz/internal/models"
	"wiki-quiz/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const turingURL = "https://en.wikipedia.org/wiki/Alan_Turing"

// MockExtractor is a mock implementation of ArticleExtractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, articleURL string) (*extractor.Document, error) {
	args := m.Called(ctx, articleURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extractor.Document), args.Error(1)
}

// MockGenerator is a mock implementation of QuizMaker
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, title, content string) (*generator.Result, error) {
	args := m.Called(ctx, title, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generator.Result), args.Error(1)
}

type testEnv struct {
	service   *QuizService
	store     *store.Store
	db        *gorm.DB
	extractor *MockExtractor
	generator *MockGenerator
	metrics   *metrics.Metrics
}

func setupTestService(t *testing.T) *testEnv {
	db, err := database.Connect(&database.Config{URL: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	env := &testEnv{
		store:     store.New(db),
		db:        db,
		extractor: new(MockExtractor),
		generator: new(MockGenerator),
		metrics:   metrics.New(),
	}
	env.service = NewQuizService(env.store, env.extractor, env.generator, env.metrics, logger.Nop())
	return env
}

func turingDocument() *extractor.Document {
	entities := models.NewEntities()
	entities.People = []string{"mathematician", "Bletchley Park"}
	return &extractor.Document{
		URL:         turingURL,
		Title:       "Alan Turing",
		Summary:     "Alan Mathison Turing was an English mathematician.",
		Sections:    []string{"Early life", "Career", "Legacy"},
		FullText:    "Alan Mathison Turing was an English mathematician.\n\nEarly life\n\n",
		KeyEntities: entities,
		RawHTML:     "<html>turing</html>",
	}
}

func makeResult(n int) *generator.Result {
	quiz := make([]generator.QuestionDraft, n)
	for i := range quiz {
		quiz[i] = generator.QuestionDraft{
			Question:    fmt.Sprintf("Question %d?", i+1),
			Options:     []string{"A", "B", "C", "D"},
			Answer:      "C",
			Difficulty:  "medium",
			Explanation: "Stated in the article.",
			Section:     "Career",
		}
	}
	return &generator.Result{Quiz: quiz, RelatedTopics: []string{"Enigma machine", "Turing test", "Alonzo Church"}}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestGenerateQuizOnEmptyStore(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil).Once()
	env.generator.On("Generate", mock.Anything, "Alan Turing", turingDocument().FullText).Return(makeResult(6), nil).Once()

	resp, err := env.service.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)

	assert.Equal(t, uint(1), resp.ID)
	assert.Equal(t, "Alan Turing", resp.Title)
	assert.Equal(t, turingURL, resp.URL)
	assert.Equal(t, []string{"Early life", "Career", "Legacy"}, resp.Sections)
	assert.Equal(t, []string{"mathematician", "Bletchley Park"}, resp.KeyEntities.People)
	assert.GreaterOrEqual(t, len(resp.Quiz), 5)
	assert.LessOrEqual(t, len(resp.Quiz), 10)
	for _, q := range resp.Quiz {
		assert.Contains(t, q.Options, q.Answer)
	}

	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Quiz{}))
	assert.Equal(t, int64(6), countRows(t, env.db, &models.Question{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.QuizRequests.WithLabelValues(metrics.OutcomeGenerated)))

	env.extractor.AssertExpectations(t)
	env.generator.AssertExpectations(t)
}

func TestGenerateQuizCacheHitIsIdentical(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil).Once()
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil).Once()

	first, err := env.service.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := env.service.GenerateQuiz(context.Background(), turingURL)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.JSONEq(t, string(firstJSON), string(againJSON))
		assert.Equal(t, string(firstJSON), string(againJSON))
	}

	env.generator.AssertNumberOfCalls(t, "Generate", 1)
	env.extractor.AssertNumberOfCalls(t, "Extract", 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.QuizRequests.WithLabelValues(metrics.OutcomeCacheHit)))
}

func TestGenerateQuizDefaultsMissingSection(t *testing.T) {
	env := setupTestService(t)
	result := makeResult(5)
	result.Quiz[2].Section = ""

	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(result, nil)

	resp, err := env.service.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSection, resp.Quiz[2].Section)
	assert.Equal(t, "Career", resp.Quiz[1].Section)

	var stored models.Question
	require.NoError(t, env.db.Where("question_text = ?", "Question 3?").First(&stored).Error)
	assert.Equal(t, "General", stored.Section)
}

func TestGenerateQuizExtractionFailureWritesNothing(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, "https://en.wikipedia.org/wiki/Nope").
		Return(nil, fmt.Errorf("%w: HTTP 404", extractor.ErrFetch))

	_, err := env.service.GenerateQuiz(context.Background(), "https://en.wikipedia.org/wiki/Nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))
	assert.ErrorIs(t, err, extractor.ErrFetch)

	assert.Zero(t, countRows(t, env.db, &models.Article{}))
	assert.Zero(t, countRows(t, env.db, &models.Quiz{}))
	env.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateQuizRejectsEmptyURL(t *testing.T) {
	env := setupTestService(t)

	_, err := env.service.GenerateQuiz(context.Background(), "   ")
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))
	env.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestGenerateQuizGenerationFailureKeepsArticle(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: quota exceeded", generator.ErrService)).Once()

	_, err := env.service.GenerateQuiz(context.Background(), turingURL)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apierr.StatusOf(err))
	assert.Equal(t, apierr.CodeGenerationFailed, apierr.As(err).Code)

	article, err := env.store.FindArticleByURL(context.Background(), turingURL)
	require.NoError(t, err)
	assert.Zero(t, countRows(t, env.db, &models.Quiz{}))

	// A retry reuses the stored article instead of creating another.
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil).Once()
	resp, err := env.service.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	assert.Equal(t, article.ID, resp.ID)
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
	env.extractor.AssertNumberOfCalls(t, "Extract", 2)
}

func TestGenerateQuizEmptyResultIsFailure(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(&generator.Result{}, nil)

	_, err := env.service.GenerateQuiz(context.Background(), turingURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, generator.ErrEmptyQuiz)
	assert.Equal(t, http.StatusInternalServerError, apierr.StatusOf(err))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
}

func TestGenerateQuizPersistenceFailureRollsBackQuizOnly(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil)

	err := env.db.Callback().Create().Before("gorm:create").Register("test:fail_questions", func(tx *gorm.DB) {
		if tx.Statement.Table == "questions" {
			tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	_, err = env.service.GenerateQuiz(context.Background(), turingURL)
	require.Error(t, err)
	assert.Equal(t, apierr.CodePersistenceFailed, apierr.As(err).Code)
	assert.Equal(t, http.StatusInternalServerError, apierr.StatusOf(err))

	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
	assert.Zero(t, countRows(t, env.db, &models.Quiz{}))
	assert.Zero(t, countRows(t, env.db, &models.Question{}))
}

func TestGenerateQuizInitializesMissingSchema(t *testing.T) {
	env := setupTestService(t)
	require.NoError(t, models.DropAll(env.db))

	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil)

	resp, err := env.service.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	assert.Equal(t, uint(1), resp.ID)
	assert.Equal(t, int64(5), countRows(t, env.db, &models.Question{}))
}

func TestGenerateQuizRegeneratesWhenQuizHasNoQuestions(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	article := &models.Article{URL: turingURL, Title: "Alan Turing (stored)"}
	require.NoError(t, env.store.CreateArticle(ctx, article))
	_, err := env.store.CreateQuiz(ctx, article.ID, []string{"stale"})
	require.NoError(t, err)

	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, "Alan Turing", mock.Anything).Return(makeResult(5), nil).Once()

	resp, err := env.service.GenerateQuiz(ctx, turingURL)
	require.NoError(t, err)
	assert.Equal(t, article.ID, resp.ID)
	assert.Equal(t, "Alan Turing (stored)", resp.Title)
	assert.Len(t, resp.Quiz, 5)
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
	assert.Equal(t, int64(2), countRows(t, env.db, &models.Quiz{}))

	cached, err := env.service.GetQuiz(ctx, article.ID)
	require.NoError(t, err)
	assert.Len(t, cached.Quiz, 5)
	assert.Equal(t, []string{"Enigma machine", "Turing test", "Alonzo Church"}, cached.RelatedTopics)
}

func TestGenerateQuizConcurrentRequestsShareOneArticle(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.GenerateQuiz(context.Background(), turingURL)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
	env.generator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGetQuiz(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(7), nil)

	generated, err := env.service.GenerateQuiz(ctx, turingURL)
	require.NoError(t, err)

	fetched, err := env.service.GetQuiz(ctx, generated.ID)
	require.NoError(t, err)
	assert.Equal(t, generated, fetched)
}

func TestGetQuizNotFound(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	_, err := env.service.GetQuiz(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
	assert.Contains(t, err.Error(), "article not found")

	article := &models.Article{URL: "https://en.wikipedia.org/wiki/Empty", Title: "Empty"}
	require.NoError(t, env.store.CreateArticle(ctx, article))

	_, err = env.service.GetQuiz(ctx, article.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
	assert.Contains(t, err.Error(), "quiz not found")
}

func TestPreviewArticle(t *testing.T) {
	env := setupTestService(t)
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.extractor.On("Extract", mock.Anything, "bad").Return(nil, extractor.ErrMissingElement)

	preview, err := env.service.PreviewArticle(context.Background(), turingURL)
	require.NoError(t, err)
	assert.Equal(t, &Preview{Title: "Alan Turing", Summary: "Alan Mathison Turing was an English mathematician."}, preview)

	_, err = env.service.PreviewArticle(context.Background(), "bad")
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))

	assert.Zero(t, countRows(t, env.db, &models.Article{}))
	env.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestListAndDeleteArticles(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	env.extractor.On("Extract", mock.Anything, turingURL).Return(turingDocument(), nil)
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil)

	resp, err := env.service.GenerateQuiz(ctx, turingURL)
	require.NoError(t, err)

	articles, err := env.service.ListArticles(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Alan Turing", articles[0].Title)

	require.NoError(t, env.service.DeleteArticle(ctx, resp.ID))
	assert.Zero(t, countRows(t, env.db, &models.Question{}))

	err = env.service.DeleteArticle(ctx, resp.ID)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
}

func TestGenerateQuizSurvivesCancelledJoinedCaller(t *testing.T) {
	env := setupTestService(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var extractCtx context.Context

	env.extractor.On("Extract", mock.Anything, turingURL).Run(func(args mock.Arguments) {
		extractCtx = args.Get(0).(context.Context)
		close(started)
		<-release
	}).Return(turingDocument(), nil).Once()
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil).Once()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := env.service.GenerateQuiz(ctxA, turingURL)
		errA <- err
	}()

	<-started
	cancelA()
	err := <-errA
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, http.StatusBadRequest, apierr.StatusOf(err))
	assert.NoError(t, extractCtx.Err())

	// The first run is still blocked in extraction, so this call joins it.
	type outcome struct {
		resp *QuizResponse
		err  error
	}
	resB := make(chan outcome, 1)
	go func() {
		resp, err := env.service.GenerateQuiz(context.Background(), turingURL)
		resB <- outcome{resp, err}
	}()

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "Alan Turing", b.resp.Title)
	assert.Len(t, b.resp.Quiz, 5)

	env.extractor.AssertNumberOfCalls(t, "Extract", 1)
	env.generator.AssertNumberOfCalls(t, "Generate", 1)
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
}

func TestPreviewArticleCancelledIsNotClientFault(t *testing.T) {
	env := setupTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env.extractor.On("Extract", mock.Anything, turingURL).
		Return(nil, fmt.Errorf("%w: %w", extractor.ErrFetch, context.Canceled))

	_, err := env.service.PreviewArticle(ctx, turingURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, http.StatusBadRequest, apierr.StatusOf(err))
}

func TestGenerateQuizReusesArticleStoredConcurrently(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	winner := &models.Article{URL: turingURL, Title: "Alan Turing"}

	env.extractor.On("Extract", mock.Anything, turingURL).Run(func(args mock.Arguments) {
		// Another process stores the same URL between lookup and save.
		assert.NoError(t, env.store.CreateArticle(ctx, winner))
	}).Return(turingDocument(), nil).Once()
	env.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(makeResult(5), nil).Once()

	resp, err := env.service.GenerateQuiz(ctx, turingURL)
	require.NoError(t, err)
	assert.NotZero(t, winner.ID)
	assert.Equal(t, winner.ID, resp.ID)
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Article{}))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Quiz{}))
}
