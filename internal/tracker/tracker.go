// Package tracker owns quiz and progress state. A single goroutine applies every
// request in arrival order, so submissions never interleave.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/grading"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/progress"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// ErrTrackerClosed is returned for requests made before Start or after Close.
var ErrTrackerClosed = errors.New("tracker is closed")

// Tracker is the single writer of the quiz and progress stores.
type Tracker struct {
	store    storage.QuizStore
	cfg      progress.Config
	logger   *zap.Logger
	now      func() time.Time
	requests chan func(context.Context)

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// owned by the actor goroutine
	state *models.ProgressState
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = utils.OrNop(l) }
}

// WithConfig sets the aggregation settings.
func WithConfig(cfg progress.Config) Option {
	return func(t *Tracker) { t.cfg = cfg }
}

// WithClock sets the time source for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a Tracker over store. Call Start before use.
func New(store storage.QuizStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		cfg:      progress.DefaultConfig(),
		logger:   zap.NewNop(),
		now:      time.Now,
		requests: make(chan func(context.Context)),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start loads the progress aggregate and launches the actor. It runs until ctx is
// cancelled or Close is called.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}
	select {
	case <-t.done:
		return ErrTrackerClosed
	default:
	}
	state, err := t.store.LoadProgress(ctx)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	t.state = state
	t.started = true
	go t.run(ctx)
	return nil
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.stopped)
	// Requests run under a context detached from ctx so an in-flight write finishes.
	reqCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			t.stopOnce.Do(func() { close(t.done) })
			return
		case <-t.done:
			return
		case fn := <-t.requests:
			fn(reqCtx)
		}
	}
}

// Close stops the actor and waits for it to exit. It is safe to call more than once.
func (t *Tracker) Close() error {
	t.stopOnce.Do(func() { close(t.done) })
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if started {
		<-t.stopped
	}
	return nil
}

// do runs fn on the actor goroutine and waits for its result.
func do[T any](ctx context.Context, t *Tracker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return zero, ErrTrackerClosed
	}

	type result struct {
		val T
		err error
	}
	reply := make(chan result, 1)
	req := func(actx context.Context) {
		val, err := fn(actx)
		reply <- result{val, err}
	}

	select {
	case t.requests <- req:
	case <-t.done:
		return zero, ErrTrackerClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// SaveQuiz stores a newly generated quiz.
func (t *Tracker) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	_, err := do(ctx, t, func(actx context.Context) (struct{}, error) {
		return struct{}{}, t.store.SaveQuiz(actx, quiz)
	})
	return err
}

// Submit grades answers for quizID, records the result and folds it into progress.
// It returns models.ErrQuizNotFound for an unknown quiz and models.ErrQuizAlreadySubmitted
// when the quiz was already graded.
func (t *Tracker) Submit(ctx context.Context, quizID string, answers map[int]string) (*models.GradeResult, error) {
	return do(ctx, t, func(actx context.Context) (*models.GradeResult, error) {
		quiz, err := t.store.GetQuiz(actx, quizID)
		if err != nil {
			return nil, err
		}
		if quiz.Submitted {
			return nil, fmt.Errorf("%w: %s", models.ErrQuizAlreadySubmitted, quizID)
		}

		graded := grading.Grade(quiz, answers)
		submittedAt := t.now().UTC()
		score := graded.Score
		quiz.Submitted = true
		quiz.Score = &score
		quiz.Answers = normalizeAnswers(quiz, answers)
		quiz.Results = graded.Results
		quiz.SubmittedAt = &submittedAt

		next := cloneState(t.state)
		progress.Record(next, quiz, t.cfg.ActivityLimit)
		if err := t.store.SaveSubmission(actx, quiz, next); err != nil {
			return nil, fmt.Errorf("save submission: %w", err)
		}
		t.state = next

		t.logger.Info("quiz submitted",
			zap.String("quiz_id", quizID),
			zap.Float64("score", score),
			zap.Int("correct", graded.CorrectAnswers),
			zap.Int("total", graded.TotalQuestions))
		return graded, nil
	})
}

// Quiz returns a stored quiz.
func (t *Tracker) Quiz(ctx context.Context, id string) (*models.Quiz, error) {
	return do(ctx, t, func(actx context.Context) (*models.Quiz, error) {
		return t.store.GetQuiz(actx, id)
	})
}

// History lists every stored quiz in creation order.
func (t *Tracker) History(ctx context.Context) ([]models.QuizHistoryEntry, error) {
	return do(ctx, t, func(actx context.Context) ([]models.QuizHistoryEntry, error) {
		quizzes, err := t.store.ListQuizzes(actx)
		if err != nil {
			return nil, err
		}
		entries := make([]models.QuizHistoryEntry, len(quizzes))
		for i, q := range quizzes {
			entries[i] = models.QuizHistoryEntry{
				QuizID:         q.ID,
				CreatedAt:      q.CreatedAt,
				Submitted:      q.Submitted,
				Score:          q.Score,
				TotalQuestions: len(q.Questions),
			}
		}
		return entries, nil
	})
}

// Summary returns the progress read model.
func (t *Tracker) Summary(ctx context.Context) (*models.ProgressSummary, error) {
	return do(ctx, t, func(context.Context) (*models.ProgressSummary, error) {
		return progress.Summarize(t.state, t.cfg), nil
	})
}

// WeakAreas returns the topics below the weak threshold, weakest first.
func (t *Tracker) WeakAreas(ctx context.Context) ([]models.WeakArea, error) {
	return do(ctx, t, func(context.Context) ([]models.WeakArea, error) {
		return progress.WeakAreas(t.state, t.cfg.WeakThreshold, t.cfg.WeakLimit), nil
	})
}

// normalizeAnswers keeps one answer per question index, with missing answers as "".
func normalizeAnswers(quiz *models.Quiz, answers map[int]string) map[int]string {
	out := make(map[int]string, len(quiz.Questions))
	for i := range quiz.Questions {
		out[i] = answers[i]
	}
	return out
}

// cloneState deep-copies s so a failed write leaves the live aggregate untouched.
func cloneState(s *models.ProgressState) *models.ProgressState {
	out := &models.ProgressState{
		TotalQuizzes:            s.TotalQuizzes,
		TotalQuestionsAttempted: s.TotalQuestionsAttempted,
		Scores:                  append([]float64{}, s.Scores...),
		TopicPerformance:        make(map[string]*models.TopicStats, len(s.TopicPerformance)),
		RecentActivity:          append([]models.ActivityEntry{}, s.RecentActivity...),
	}
	for k, v := range s.TopicPerformance {
		if v == nil {
			continue
		}
		stats := *v
		out.TopicPerformance[k] = &stats
	}
	return out
}
