package progress

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("record not found")
	ErrUnauthorized   = errors.New("resource does not belong to this user")
	ErrUngradableQuiz = errors.New("quiz has no questions")

	nowFunc = time.Now // mockable
)

type (
	// ContentRepository is the read-only slice of the course store this
	// engine needs; the course repository implements it.
	ContentRepository interface {
		// CourseLessonIDs returns the ids of all lessons across all modules
		// of the course.
		CourseLessonIDs(ctx context.Context, courseID string) ([]string, error)
		// LessonInstructorID returns the instructor owning the lesson's
		// course; ErrNotFound when the lesson does not exist.
		LessonInstructorID(ctx context.Context, lessonID string) (string, error)
	}

	Repository interface {
		GetRecord(ctx context.Context, userID, lessonID string) (Record, error)
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		// CountCompleted counts the user's completed records among lessonIDs.
		CountCompleted(ctx context.Context, userID string, lessonIDs []string) (int, error)

		GetQuizByLesson(ctx context.Context, lessonID string) (Quiz, error)
		// GetQuizWithQuestions loads the quiz with questions and answers,
		// both ordered by position ascending.
		GetQuizWithQuestions(ctx context.Context, quizID string) (Quiz, error)
		// UpsertQuiz inserts the quiz or replaces its full question set.
		UpsertQuiz(ctx context.Context, quiz Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, lessonID string) error

		CreateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		GetAttemptByID(ctx context.Context, id string) (Attempt, error)
		UpdateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		// FilterAttempts returns the user's attempts, newest first.
		FilterAttempts(ctx context.Context, userID string) ([]Attempt, error)
	}

	Service interface {
		// CourseProgress computes the user's completion percentage for the
		// course, recomputed on demand.
		CourseProgress(ctx context.Context, userID, courseID string) (int, error)
		MarkLessonComplete(ctx context.Context, userID, lessonID string) (Record, error)
		UpdateLessonPosition(ctx context.Context, userID, lessonID string, seconds int) (Record, error)

		QuizByLesson(ctx context.Context, lessonID string) (Quiz, error)
		QuizWithQuestions(ctx context.Context, quizID string) (Quiz, error)
		// SaveQuiz creates or replaces the lesson's quiz; only the owning
		// instructor or an admin may author it.
		SaveQuiz(ctx context.Context, actor user.User, lessonID string, nq NewQuiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, actor user.User, lessonID string) error
		StartAttempt(ctx context.Context, userID, quizID string) (Attempt, error)
		GradeAttempt(ctx context.Context, attemptID, userID string, sub Submission) (Attempt, error)
		Attempts(ctx context.Context, userID string) ([]Attempt, error)
	}

	service struct {
		repo    Repository
		content ContentRepository

		recordMu  *keyedMutex // serializes upserts per (user, lesson)
		attemptMu *keyedMutex // serializes grading per attempt
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, content ContentRepository) Service {
	return &service{
		repo:      repo,
		content:   content,
		recordMu:  newKeyedMutex(),
		attemptMu: newKeyedMutex(),
	}
}

// CourseProgress returns round(100 * completed / total) using round-half-up.
// A course with no lessons is 0% complete by definition.
func (svc *service) CourseProgress(ctx context.Context, userID, courseID string) (int, error) {
	lessonIDs, err := svc.content.CourseLessonIDs(ctx, courseID)
	if err != nil {
		return 0, svc.wrap("fetching course lessons", err)
	}
	if len(lessonIDs) == 0 {
		return 0, nil
	}

	completed, err := svc.repo.CountCompleted(ctx, userID, lessonIDs)
	if err != nil {
		return 0, svc.wrap("counting completed lessons", err)
	}
	return int(math.Round(100 * float64(completed) / float64(len(lessonIDs)))), nil
}

// MarkLessonComplete upserts the (user, lesson) record with completed=true.
// Idempotent: remarking an already-completed lesson only refreshes
// CompletedAt. The upsert is serialized per key to keep the existence check
// and the write race-free.
func (svc *service) MarkLessonComplete(ctx context.Context, userID, lessonID string) (Record, error) {
	key := userID + ":" + lessonID
	svc.recordMu.lock(key)
	defer svc.recordMu.unlock(key)

	now := nowFunc().UTC()
	rec, err := svc.repo.GetRecord(ctx, userID, lessonID)
	switch err {
	case nil:
		rec.Completed = true
		rec.CompletedAt = null.TimeFrom(now)
		rec.UpdatedAt = now
		if rec, err = svc.repo.UpdateRecord(ctx, rec); err != nil {
			return Record{}, svc.wrap("updating progress record", err)
		}
		return rec, nil
	case ErrNotFound:
		rec = Record{
			ID:          uuid.New().String(),
			UserID:      userID,
			LessonID:    lessonID,
			Completed:   true,
			CompletedAt: null.TimeFrom(now),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if rec, err = svc.repo.CreateRecord(ctx, rec); err != nil {
			return Record{}, svc.wrap("creating progress record", err)
		}
		return rec, nil
	default:
		return Record{}, svc.wrap("fetching progress record", err)
	}
}

// UpdateLessonPosition upserts the last watched position without touching
// the completion flag.
func (svc *service) UpdateLessonPosition(ctx context.Context, userID, lessonID string, seconds int) (Record, error) {
	key := userID + ":" + lessonID
	svc.recordMu.lock(key)
	defer svc.recordMu.unlock(key)

	now := nowFunc().UTC()
	rec, err := svc.repo.GetRecord(ctx, userID, lessonID)
	switch err {
	case nil:
		rec.LastWatchedPosition = null.IntFrom(seconds)
		rec.UpdatedAt = now
		if rec, err = svc.repo.UpdateRecord(ctx, rec); err != nil {
			return Record{}, svc.wrap("updating progress record", err)
		}
		return rec, nil
	case ErrNotFound:
		rec = Record{
			ID:                  uuid.New().String(),
			UserID:              userID,
			LessonID:            lessonID,
			LastWatchedPosition: null.IntFrom(seconds),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if rec, err = svc.repo.CreateRecord(ctx, rec); err != nil {
			return Record{}, svc.wrap("creating progress record", err)
		}
		return rec, nil
	default:
		return Record{}, svc.wrap("fetching progress record", err)
	}
}

func (svc *service) QuizByLesson(ctx context.Context, lessonID string) (Quiz, error) {
	return svc.repo.GetQuizByLesson(ctx, lessonID)
}

func (svc *service) SaveQuiz(ctx context.Context, actor user.User, lessonID string, nq NewQuiz) (Quiz, error) {
	if err := nq.Validate(); err != nil {
		return Quiz{}, err
	}
	if err := svc.authorizeLesson(ctx, actor, lessonID); err != nil {
		return Quiz{}, err
	}

	quiz := Quiz{
		ID:             uuid.New().String(),
		LessonID:       lessonID,
		Title:          nq.Title,
		PassPercentage: nq.PassPercentage,
	}
	// replacing keeps the existing quiz id so in-flight attempts stay attached
	if existing, err := svc.repo.GetQuizByLesson(ctx, lessonID); err == nil {
		quiz.ID = existing.ID
	} else if err != ErrNotFound {
		return Quiz{}, svc.wrap("fetching quiz", err)
	}

	for i, q := range nq.Questions {
		question := Question{
			ID:       uuid.New().String(),
			QuizID:   quiz.ID,
			Position: i + 1,
			Prompt:   q.Prompt,
			Type:     q.Type,
		}
		for j, a := range q.Answers {
			question.Answers = append(question.Answers, Answer{
				ID:         uuid.New().String(),
				QuestionID: question.ID,
				Position:   j + 1,
				Text:       a.Text,
				IsCorrect:  a.IsCorrect,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	quiz, err := svc.repo.UpsertQuiz(ctx, quiz)
	if err != nil {
		return Quiz{}, svc.wrap("saving quiz", err)
	}
	return quiz, nil
}

func (svc *service) DeleteQuiz(ctx context.Context, actor user.User, lessonID string) error {
	if err := svc.authorizeLesson(ctx, actor, lessonID); err != nil {
		return err
	}
	if _, err := svc.repo.GetQuizByLesson(ctx, lessonID); err != nil {
		if err == ErrNotFound {
			return err
		}
		return svc.wrap("fetching quiz", err)
	}
	if err := svc.repo.DeleteQuiz(ctx, lessonID); err != nil {
		return svc.wrap("deleting quiz", err)
	}
	return nil
}

// authorizeLesson admits admins and the instructor owning the lesson's course.
func (svc *service) authorizeLesson(ctx context.Context, actor user.User, lessonID string) error {
	if actor.IsAdmin() {
		return nil
	}
	instructorID, err := svc.content.LessonInstructorID(ctx, lessonID)
	if err != nil {
		if err == ErrNotFound {
			return err
		}
		return svc.wrap("fetching lesson owner", err)
	}
	if instructorID != actor.ID {
		return ErrUnauthorized
	}
	return nil
}

func (svc *service) QuizWithQuestions(ctx context.Context, quizID string) (Quiz, error) {
	return svc.repo.GetQuizWithQuestions(ctx, quizID)
}

// StartAttempt always creates a new row; multiple in-flight attempts per
// (user, quiz) are permitted, each graded independently by its own id.
func (svc *service) StartAttempt(ctx context.Context, userID, quizID string) (Attempt, error) {
	if _, err := svc.repo.GetQuizWithQuestions(ctx, quizID); err != nil {
		if err == ErrNotFound {
			return Attempt{}, err
		}
		return Attempt{}, svc.wrap("fetching quiz", err)
	}
	att, err := svc.repo.CreateAttempt(ctx, Attempt{
		ID:        uuid.New().String(),
		UserID:    userID,
		QuizID:    quizID,
		StartedAt: nowFunc().UTC(),
	})
	if err != nil {
		return Attempt{}, svc.wrap("creating attempt", err)
	}
	return att, nil
}

// GradeAttempt grades the submission against the quiz's answer key and
// persists score, passed and completedAt on the attempt exactly once per
// call. Regrading a completed attempt recomputes and overwrites; it never
// appends a new attempt. Grading is serialized per attempt id.
func (svc *service) GradeAttempt(ctx context.Context, attemptID, userID string, sub Submission) (Attempt, error) {
	svc.attemptMu.lock(attemptID)
	defer svc.attemptMu.unlock(attemptID)

	att, err := svc.repo.GetAttemptByID(ctx, attemptID)
	if err != nil {
		if err == ErrNotFound {
			return Attempt{}, err
		}
		return Attempt{}, svc.wrap("fetching attempt", err)
	}
	if att.UserID != userID {
		return Attempt{}, ErrUnauthorized
	}

	quiz, err := svc.repo.GetQuizWithQuestions(ctx, att.QuizID)
	if err != nil {
		if err == ErrNotFound {
			return Attempt{}, err
		}
		return Attempt{}, svc.wrap("fetching quiz", err)
	}
	if len(quiz.Questions) == 0 {
		return Attempt{}, ErrUngradableQuiz
	}

	correct := 0
	for _, q := range quiz.Questions {
		if isCorrect(q, sub[q.ID]) {
			correct++
		}
	}
	att.Score = int(math.Round(100 * float64(correct) / float64(len(quiz.Questions))))
	att.Passed = att.Score >= quiz.PassPercentage
	att.CompletedAt = null.TimeFrom(nowFunc().UTC())

	if att, err = svc.repo.UpdateAttempt(ctx, att); err != nil {
		return Attempt{}, svc.wrap("saving grade", err)
	}
	return att, nil
}

func (svc *service) Attempts(ctx context.Context, userID string) ([]Attempt, error) {
	return svc.repo.FilterAttempts(ctx, userID)
}

// isCorrect decides one question: for choice questions the submitted answer
// id must carry the is_correct flag; for short answers the submitted text
// must match a correct answer exactly, case-insensitively, with no
// normalization beyond trimming surrounding whitespace.
func isCorrect(q Question, submitted string) bool {
	if submitted == "" {
		return false // unsubmitted counts as incorrect, no penalty
	}
	switch q.Type {
	case QuestionShortAnswer:
		submitted = strings.TrimSpace(submitted)
		for _, a := range q.Answers {
			if a.IsCorrect && strings.EqualFold(strings.TrimSpace(a.Text), submitted) {
				return true
			}
		}
	default: // multiple_choice, true_false
		for _, a := range q.Answers {
			if a.ID == submitted {
				return a.IsCorrect
			}
		}
	}
	return false
}

// wrap classifies storage failures; sentinels pass through untouched.
func (svc *service) wrap(op string, err error) error {
	switch err {
	case ErrNotFound, context.DeadlineExceeded, context.Canceled:
		return err
	default:
		return core.NewRepositoryError(op, err)
	}
}
