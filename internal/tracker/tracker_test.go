package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/storage"
)

var fixedNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func start(t *testing.T, store storage.QuizStore) *Tracker {
	t.Helper()
	tr := New(store, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func sampleQuiz(id string) *models.Quiz {
	return &models.Quiz{
		ID:           id,
		CreatedAt:    fixedNow.Add(-time.Hour),
		QuestionType: models.QuestionMixed,
		Questions: []models.Question{
			{Question: "Capital of France?", Options: []string{"Paris", "Rome", "Oslo", "Bern"}, CorrectAnswer: "Paris", QuestionType: models.QuestionMCQ, Topic: "Geography"},
			{Question: "Capital of Italy?", Options: []string{"Paris", "Rome", "Oslo", "Bern"}, CorrectAnswer: "Rome", QuestionType: models.QuestionMCQ, Topic: "Geography"},
			{Question: "Explain osmosis", CorrectAnswer: "Water diffuses across membranes", QuestionType: models.QuestionShortAnswer, Topic: "Biology"},
		},
	}
}

func TestSubmit(t *testing.T) {
	store := newStore(t)
	tr := start(t, store)
	ctx := context.Background()
	require.NoError(t, tr.SaveQuiz(ctx, sampleQuiz("q1")))

	res, err := tr.Submit(ctx, "q1", map[int]string{0: "paris", 1: "Oslo", 2: "water diffuses through membranes"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CorrectAnswers)
	assert.InDelta(t, 66.666, res.Score, 0.01)

	stored, err := tr.Quiz(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, stored.Submitted)
	require.NotNil(t, stored.Score)
	assert.Equal(t, res.Score, *stored.Score)
	assert.Equal(t, map[int]string{0: "paris", 1: "Oslo", 2: "water diffuses through membranes"}, stored.Answers)
	require.NotNil(t, stored.SubmittedAt)
	assert.True(t, fixedNow.Equal(*stored.SubmittedAt))

	summary, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalQuizzes)
	assert.Equal(t, 3, summary.TotalQuestionsAttempted)
	assert.InDelta(t, 66.67, summary.AverageScore, 1e-9)
	require.Len(t, summary.RecentActivity, 1)
	assert.Equal(t, "q1", summary.RecentActivity[0].QuizID)

	weak, err := tr.WeakAreas(ctx)
	require.NoError(t, err)
	require.Len(t, weak, 1)
	assert.Equal(t, "Geography", weak[0].Topic)
	assert.InDelta(t, 50.0, weak[0].Accuracy, 1e-9)

	persisted, err := store.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.TotalQuizzes)
}

func TestSubmit_UnknownQuiz(t *testing.T) {
	tr := start(t, newStore(t))
	_, err := tr.Submit(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, models.ErrQuizNotFound)
}

func TestSubmit_RejectsResubmission(t *testing.T) {
	tr := start(t, newStore(t))
	ctx := context.Background()
	require.NoError(t, tr.SaveQuiz(ctx, sampleQuiz("q1")))

	first, err := tr.Submit(ctx, "q1", map[int]string{0: "Paris"})
	require.NoError(t, err)
	_, err = tr.Submit(ctx, "q1", map[int]string{0: "Paris", 1: "Rome", 2: "water diffuses across membranes"})
	assert.ErrorIs(t, err, models.ErrQuizAlreadySubmitted)

	stored, err := tr.Quiz(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, first.Score, *stored.Score)
	summary, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalQuizzes)
}

func TestSubmit_ProgressSurvivesRestart(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	tr := New(store)
	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.SaveQuiz(ctx, sampleQuiz("q1")))
	_, err := tr.Submit(ctx, "q1", map[int]string{})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	again := start(t, store)
	summary, err := again.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalQuizzes)
	assert.Zero(t, summary.AverageScore)
}

type failingSubmissions struct {
	storage.QuizStore
}

func (failingSubmissions) SaveSubmission(context.Context, *models.Quiz, *models.ProgressState) error {
	return errors.New("disk full")
}

func TestSubmit_FailedWriteLeavesStateUnchanged(t *testing.T) {
	store := newStore(t)
	tr := start(t, failingSubmissions{store})
	ctx := context.Background()
	require.NoError(t, tr.SaveQuiz(ctx, sampleQuiz("q1")))

	_, err := tr.Submit(ctx, "q1", map[int]string{0: "Paris"})
	require.Error(t, err)

	summary, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalQuizzes)
	stored, err := tr.Quiz(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, stored.Submitted)
}

func TestConcurrentSubmissionsAreSerialized(t *testing.T) {
	tr := start(t, newStore(t))
	ctx := context.Background()
	const n = 20
	for i := range n {
		require.NoError(t, tr.SaveQuiz(ctx, sampleQuiz(fmt.Sprintf("q%02d", i))))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := range n {
		for range 2 {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := tr.Submit(ctx, id, map[int]string{0: "Paris"}); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}(fmt.Sprintf("q%02d", i))
		}
	}
	wg.Wait()

	assert.Equal(t, n, accepted)
	summary, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, summary.TotalQuizzes)
	assert.Equal(t, 3*n, summary.TotalQuestionsAttempted)
}

func TestHistory(t *testing.T) {
	tr := start(t, newStore(t))
	ctx := context.Background()
	require.NoError(t, tr.SaveQuiz(ctx, sampleQuiz("a")))
	require.NoError(t, tr.SaveQuiz(ctx, sampleQuiz("b")))
	_, err := tr.Submit(ctx, "b", nil)
	require.NoError(t, err)

	hist, err := tr.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "a", hist[0].QuizID)
	assert.False(t, hist[0].Submitted)
	assert.Nil(t, hist[0].Score)
	assert.Equal(t, "b", hist[1].QuizID)
	assert.True(t, hist[1].Submitted)
	assert.Equal(t, 3, hist[1].TotalQuestions)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	tr := New(newStore(t))
	_, err := tr.Summary(ctx)
	assert.ErrorIs(t, err, ErrTrackerClosed)

	require.NoError(t, tr.Start(ctx))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	_, err = tr.Summary(ctx)
	assert.ErrorIs(t, err, ErrTrackerClosed)
	assert.ErrorIs(t, tr.Start(ctx), ErrTrackerClosed)
}

func TestStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := New(newStore(t))
	require.NoError(t, tr.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		_, err := tr.Summary(context.Background())
		return errors.Is(err, ErrTrackerClosed)
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, tr.Close())
}
